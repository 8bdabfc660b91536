package forum

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"forum_search/internal/model"
)

// queryID finds the id the forum assigned to a search: the qid parameter of
// the page URL, a hidden qid field, or the first link carrying one.
func queryID(page *url.URL, doc *goquery.Document) int {
	if page != nil {
		if id := atoi(page.Query().Get("qid")); id > 0 {
			return id
		}
	}
	if v, ok := doc.Find(`input[name="qid"]`).First().Attr("value"); ok {
		if id := atoi(v); id > 0 {
			return id
		}
	}
	if href, ok := doc.Find(`a[href*="qid="]`).First().Attr("href"); ok {
		return linkParam(href, "qid")
	}
	return 0
}

// pageCount reads the pager: one option per page in its select box, or
// otherwise the highest page number linked.
func pageCount(doc *goquery.Document) int {
	pager := doc.Find("div.pages")
	if n := pager.Find("option").Length(); n > 0 {
		return n
	}
	highest := 1
	pager.Find("a").Each(func(_ int, s *goquery.Selection) {
		if n := atoi(strings.TrimSpace(s.Text())); n > highest {
			highest = n
		}
	})
	return highest
}

func (c *Client) parseResults(doc *goquery.Document) []model.ResultItem {
	var items []model.ResultItem
	doc.Find("li.search_result").Each(func(_ int, s *goquery.Selection) {
		title := s.Find(".threadtitle a").First()
		forum := s.Find(".forumtitle a").First()
		items = append(items, model.ResultItem{
			ThreadTitle: text(title),
			ThreadLink:  c.resolve(title.AttrOr("href", "")),
			Username:    text(s.Find(".username").First()),
			ForumTitle:  text(forum),
			ForumID:     linkParam(forum.AttrOr("href", ""), "forumid"),
			Blurb:       text(s.Find(".blurb").First()),
			PostDate:    text(s.Find(".timestamp").First()),
		})
	})
	return items
}

func (c *Client) resolve(href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return c.base.ResolveReference(ref).String()
}

// text returns the selection's text with runs of whitespace collapsed.
func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func linkParam(href, key string) int {
	u, err := url.Parse(href)
	if err != nil {
		return 0
	}
	return atoi(u.Query().Get(key))
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
