package identity

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStore(t *testing.T) {
	s := New("first")
	if diff := cmp.Diff("first", s.Username()); diff != "" {
		t.Errorf("Username() mismatch (-want +got):\n%s", diff)
	}

	s.SetUsername("second")
	if diff := cmp.Diff("second", s.Username()); diff != "" {
		t.Errorf("Username() after set mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := New("")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetUsername("goon")
		}()
		go func() {
			defer wg.Done()
			_ = s.Username()
		}()
	}
	wg.Wait()

	if diff := cmp.Diff("goon", s.Username()); diff != "" {
		t.Errorf("Username() mismatch (-want +got):\n%s", diff)
	}
}
