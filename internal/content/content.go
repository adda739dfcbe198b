// Package content reduces raw post markup to storable form: quoted
// replies are stripped first so that neither the extracted links nor
// the normalized text carry content written by other users.
package content

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kmazurek/forum-archiver/internal/urlkey"
)

// quoteSelector matches phpBB quote markup. Old boards wrap quotes in
// .quotetitle/.quotecontent div pairs, newer skins use blockquote;
// removing the node removes any quotes nested inside it as well.
const quoteSelector = "blockquote, .quotetitle, .quotecontent"

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	lineBreakTag  = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// ParseFragment wraps an HTML fragment in a document so it can be
// queried. The fragment ends up under body.
func ParseFragment(markup string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	return doc.Find("body"), nil
}

// StripQuotes removes quoted-reply blocks from sel in place and
// returns sel for chaining.
func StripQuotes(sel *goquery.Selection) *goquery.Selection {
	sel.Find(quoteSelector).Remove()
	return sel
}

// ExtractURLs returns the href of every anchor under sel, resolved
// against baseURL, in document order. Repeated links are kept: a post
// linking the same URL twice is meaningful to downstream consumers.
func ExtractURLs(sel *goquery.Selection, baseURL string) []string {
	urls := []string{}
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" {
			return
		}
		urls = append(urls, urlkey.Resolve(baseURL, href))
	})
	return urls
}

// CleanText reduces sel to whitespace-collapsed plain text.
func CleanText(sel *goquery.Selection) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(sel.Text(), " "))
}

// NormalizeMarkup runs the full pipeline on a raw markup fragment:
// strip quotes, then extract outbound links and plain text from what
// remains. Malformed markup degrades to empty results, never an error
// that would abort the surrounding row.
func NormalizeMarkup(markup, baseURL string) (text string, urls []string) {
	// <br> carries line structure that Text() would otherwise glue
	// together word-to-word.
	markup = lineBreakTag.ReplaceAllString(markup, " ")

	sel, err := ParseFragment(markup)
	if err != nil {
		return "", []string{}
	}
	StripQuotes(sel)
	return CleanText(sel), ExtractURLs(sel, baseURL)
}
