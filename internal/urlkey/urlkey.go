// Package urlkey recovers numeric identifiers and pagination offsets
// from phpBB-style URLs. All functions are pure and tolerate malformed
// input by returning zero values instead of errors.
package urlkey

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StartParam is the phpBB query parameter controlling listing pagination.
const StartParam = "start"

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// ThreadIDFromURL extracts the numeric thread identifier from a
// viewtopic-style URL. The `t` parameter wins over `p`; if neither is
// present it falls back to trailing digits in the path. Returns false
// when no numeric identifier is found anywhere.
func ThreadIDFromURL(rawURL string) (int64, bool) {
	if rawURL == "" {
		return 0, false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, false
	}
	params := parsed.Query()
	for _, key := range []string{"t", "p"} {
		if val := params.Get(key); val != "" {
			if id, err := strconv.ParseInt(val, 10, 64); err == nil {
				return id, true
			}
		}
	}
	if m := trailingDigits.FindStringSubmatch(parsed.Path); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return id, true
		}
	}
	return 0, false
}

// PaginationOffset returns the value of the start parameter, or "0"
// when absent or unparseable. Pages use it to recognize links pointing
// back at themselves.
func PaginationOffset(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "0"
	}
	if val := parsed.Query().Get(StartParam); val != "" {
		return val
	}
	return "0"
}

// Resolve joins href against base the way a browser would. Returns href
// unchanged when either side is malformed.
func Resolve(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// PaginationLinks collects follow-up page URLs from a listing page.
// Anchors must reference viewType (viewforum.php or viewtopic.php) and
// carry a start parameter; links whose offset equals the current page's
// offset are excluded so a page never lists itself, and duplicates are
// removed preserving first-seen order.
func PaginationLinks(doc *goquery.Document, pageURL, viewType string) []string {
	currentStart := PaginationOffset(pageURL)

	hrefs := collectHrefs(doc, `a[href*="`+viewType+`"][href*="`+StartParam+`="]`)
	if len(hrefs) == 0 {
		// Some skins keep pagination anchors relative without the
		// script name; fall back to any offset-bearing link.
		hrefs = collectHrefs(doc, `a[href*="`+StartParam+`="]`)
	}

	seen := make(map[string]struct{})
	var links []string
	for _, href := range hrefs {
		full := Resolve(pageURL, href)
		parsed, err := url.Parse(full)
		if err != nil {
			continue
		}
		if !strings.Contains(parsed.Path, viewType) {
			continue
		}
		start := parsed.Query().Get(StartParam)
		if start == "" {
			start = "0"
		}
		if start == currentStart {
			continue
		}
		if _, ok := seen[full]; ok {
			continue
		}
		seen[full] = struct{}{}
		links = append(links, full)
	}
	return links
}

func collectHrefs(doc *goquery.Document, selector string) []string {
	var hrefs []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}
