package bot

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"forum_search/internal/filter"
	"forum_search/internal/identity"
	"forum_search/internal/model"
	"forum_search/internal/session"
)

func TestParseIndexArg(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    int
		wantErr bool
	}{
		{name: "first", args: "1", want: 0},
		{name: "with trailing words", args: "3 extra", want: 2},
		{name: "spaces", args: "  2  ", want: 1},
		{name: "zero", args: "0", wantErr: true},
		{name: "negative", args: "-1", wantErr: true},
		{name: "not a number", args: "abc", wantErr: true},
		{name: "empty", args: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndexArg(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseIndexArg() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseEditArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		wantIndex int
		wantValue string
		wantErr   bool
	}{
		{name: "simple", args: "1 42", wantIndex: 0, wantValue: "42"},
		{name: "multi-word value", args: "2 Mega  Thread ", wantIndex: 1, wantValue: "Mega  Thread"},
		{name: "missing value", args: "1", wantErr: true},
		{name: "blank value", args: "1    ", wantErr: true},
		{name: "bad index", args: "x 42", wantErr: true},
		{name: "empty", args: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, value, err := ParseEditArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantIndex, idx); diff != "" {
				t.Errorf("index mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantValue, value); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseForumIDs(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    []int
		wantErr bool
	}{
		{name: "empty clears", args: "", want: nil},
		{name: "commas", args: "1,44,26", want: []int{1, 44, 26}},
		{name: "commas and spaces", args: "1, 44  26", want: []int{1, 44, 26}},
		{name: "zero", args: "0", wantErr: true},
		{name: "garbage", args: "1,two", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseForumIDs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseForumIDs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStartPayload(t *testing.T) {
	tokens := []model.FilterToken{
		{Kind: "text", Param: "a&b=c"},
		{Kind: "my_username", Param: ""},
		{Kind: "intitle", Param: "Mega Thread"},
	}
	payload := EncodeStartPayload(tokens)
	if strings.Trim(payload, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-") != "" {
		t.Errorf("payload has characters a deep link cannot carry: %q", payload)
	}
	got, err := DecodeStartPayload(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(tokens, got); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}

	bad := []struct {
		name    string
		payload string
	}{
		{name: "not base64", payload: "!!!"},
		{name: "missing value separator", payload: base64.RawURLEncoding.EncodeToString([]byte("userid"))},
		{name: "empty kind", payload: base64.RawURLEncoding.EncodeToString([]byte("=5"))},
		{name: "bad escape", payload: base64.RawURLEncoding.EncodeToString([]byte("userid=%zz"))},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeStartPayload(tt.payload); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestResolveKind(t *testing.T) {
	reg := filter.NewRegistry(identity.New("me"))

	tests := []struct {
		name      string
		args      string
		wantKind  filter.KindID
		wantValue string
		wantOK    bool
	}{
		{name: "by id", args: "userid 5", wantKind: filter.KindUserID, wantValue: "5", wantOK: true},
		{name: "id is case-insensitive", args: "IntItle mega", wantKind: filter.KindInTitle, wantValue: "mega", wantOK: true},
		{name: "id without value", args: "my_username", wantKind: filter.KindMyUsername, wantOK: true},
		{name: "by label", args: "thread title Mega Thread", wantKind: filter.KindInTitle, wantValue: "Mega Thread", wantOK: true},
		{name: "label of other kind sharing a prefix", args: "Thread ID 77", wantKind: filter.KindThreadID, wantValue: "77", wantOK: true},
		{name: "label only", args: "User being quoted", wantKind: filter.KindQuoting, wantOK: true},
		{name: "label must end at a word boundary", args: "Usernames x", wantOK: false},
		{name: "unknown", args: "color red", wantOK: false},
		{name: "empty", args: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, value, ok := ResolveKind(reg, tt.args)
			if diff := cmp.Diff(tt.wantOK, ok); diff != "" {
				t.Fatalf("ok mismatch (-want +got):\n%s", diff)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.wantKind, kind.ID); diff != "" {
				t.Errorf("kind mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantValue, value); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatResults(t *testing.T) {
	t.Run("numbers and details", func(t *testing.T) {
		items := []model.ResultItem{
			{
				ThreadTitle: "Pancakes megathread",
				ThreadLink:  "https://forums.example.com/showthread.php?threadid=1",
				Username:    "Dr. Goon",
				ForumTitle:  "Goons With Spoons",
				ForumID:     26,
				Blurb:       "Flip them once.",
				PostDate:    "Jan 2, 2026 10:00",
			},
			{ThreadTitle: "Bare"},
		}
		got := FormatResults(items, 11)
		want := []string{
			"11. Pancakes megathread\n" +
				"   by Dr. Goon · in Goons With Spoons · Jan 2, 2026 10:00\n" +
				"   Flip them once.\n" +
				"   https://forums.example.com/showthread.php?threadid=1" +
				"\n\n12. Bare",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("FormatResults() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty page", func(t *testing.T) {
		got := FormatResults(nil, 1)
		if diff := cmp.Diff([]string{"No results on this page."}, got); diff != "" {
			t.Errorf("FormatResults() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("long blurb is truncated", func(t *testing.T) {
		got := FormatResults([]model.ResultItem{{ThreadTitle: "t", Blurb: strings.Repeat("я", 500)}}, 1)
		if !strings.Contains(got[0], strings.Repeat("я", maxBlurbLen)+"…") {
			t.Errorf("blurb not truncated:\n%s", got[0])
		}
		if strings.Contains(got[0], strings.Repeat("я", maxBlurbLen+1)) {
			t.Error("blurb longer than limit")
		}
	})

	t.Run("splits long pages", func(t *testing.T) {
		items := make([]model.ResultItem, 60)
		for i := range items {
			items[i] = model.ResultItem{ThreadTitle: "thread", Blurb: strings.Repeat("x", maxBlurbLen)}
		}
		chunks := FormatResults(items, 1)
		if len(chunks) < 2 {
			t.Fatalf("expected several chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if len(c) > maxMessageLen {
				t.Errorf("chunk %d has %d bytes", i, len(c))
			}
		}
		if first, _, _ := strings.Cut(chunks[1], "\n"); !strings.HasSuffix(first, ". thread") {
			t.Errorf("chunk does not start with an item: %q", first)
		}
		if !strings.Contains(chunks[len(chunks)-1], "60. thread") {
			t.Error("last item missing")
		}
	})
}

func TestFormatPageLine(t *testing.T) {
	tests := []struct {
		current, total int
		want           string
	}{
		{1, 3, "Page 1 of 3. Use /more for the next page."},
		{3, 3, "Page 3 of 3. That's all."},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, FormatPageLine(tt.current, tt.total)); diff != "" {
			t.Errorf("FormatPageLine(%d, %d) mismatch (-want +got):\n%s", tt.current, tt.total, diff)
		}
	}
}

func TestFormatFilterList(t *testing.T) {
	reg := filter.NewRegistry(identity.New("Dr. Goon"))
	kind := func(id filter.KindID) *filter.Kind {
		k, ok := reg.ByID(id)
		if !ok {
			t.Fatalf("no kind %q", id)
		}
		return k
	}

	t.Run("empty", func(t *testing.T) {
		if diff := cmp.Diff("No filters. Use /filter or /add to add one.", FormatFilterList(nil)); diff != "" {
			t.Errorf("FormatFilterList() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("numbered", func(t *testing.T) {
		filters := []filter.Filter{
			filter.New(kind(filter.KindSince), "2026-01-01"),
			filter.New(kind(filter.KindMyUsername), ""),
		}
		want := "Filters:\n" +
			"\n1. Later than: since:\"2026-01-01\"" +
			"\n2. My username: username:\"Dr. Goon\" (fixed)"
		if diff := cmp.Diff(want, FormatFilterList(filters)); diff != "" {
			t.Errorf("FormatFilterList() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestFormatForums(t *testing.T) {
	if diff := cmp.Diff("all forums", FormatForums(nil)); diff != "" {
		t.Errorf("FormatForums(nil) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("forums 1, 44", FormatForums([]int{1, 44})); diff != "" {
		t.Errorf("FormatForums() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatStatus(t *testing.T) {
	s := session.New()
	want := "Status: idle\nQuery: (empty)\nScope: all forums\nFilters: 0"
	if diff := cmp.Diff(want, FormatStatus(s)); diff != "" {
		t.Errorf("FormatStatus() mismatch (-want +got):\n%s", diff)
	}
}

func TestKindKeyboard(t *testing.T) {
	reg := filter.NewRegistry(identity.New(""))
	kb := KindKeyboard(reg)

	var labels []string
	for _, row := range kb.InlineKeyboard {
		if len(row) > 2 {
			t.Errorf("row has %d buttons", len(row))
		}
		for _, btn := range row {
			labels = append(labels, btn.Text)
			if diff := cmp.Diff(actionPick+":"+btn.Text, *btn.CallbackData); diff != "" {
				t.Errorf("callback data mismatch (-want +got):\n%s", diff)
			}
		}
	}

	var want []string
	for _, k := range reg.Kinds() {
		want = append(want, k.Label)
	}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}
