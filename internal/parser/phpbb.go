package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/kmazurek/forum-archiver/internal/content"
	"github.com/kmazurek/forum-archiver/internal/dates"
	"github.com/kmazurek/forum-archiver/internal/entity"
	"github.com/kmazurek/forum-archiver/internal/urlkey"
)

// View scripts of the phpBB engine. Section listings paginate through
// viewforum.php, thread listings through viewtopic.php.
const (
	sectionView = "viewforum.php"
	threadView  = "viewtopic.php"
)

// Variant configures the phpBB parser for one forum target. The boards
// share the engine and differ only in where they live.
type Variant struct {
	Name     string
	Title    string
	StartURL string
}

var (
	postNumberParam = regexp.MustCompile(`p=(\d+)`)
	joinDateDetail  = regexp.MustCompile(`(?s)<b>Dołączył\(a\):</b>\s*([^<]+)`)
	postCountDetail = regexp.MustCompile(`<b>Posty:</b>\s*(\d+)`)
)

// PhpBB parses the page roles of a phpBB board: the root index, section
// thread listings, and thread post listings.
type PhpBB struct {
	variant Variant
	log     logrus.FieldLogger
}

// NewPhpBB returns a parser for the given forum variant.
func NewPhpBB(variant Variant, log logrus.FieldLogger) *PhpBB {
	return &PhpBB{
		variant: variant,
		log:     log.WithField("component", "parser").WithField("forum", variant.Name),
	}
}

func (p *PhpBB) Name() string { return p.variant.Name }

func (p *PhpBB) Start() Request {
	return Request{URL: p.variant.StartURL, Ctx: Context{Role: RoleRoot}}
}

// Parse dispatches on the page's context role.
func (p *PhpBB) Parse(page Page) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(page.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s page %s: %w", page.Ctx.Role, page.URL, err)
	}

	switch page.Ctx.Role {
	case RoleRoot:
		return p.parseRoot(doc, page), nil
	case RoleSection:
		return p.parseSection(doc, page), nil
	case RoleThread:
		return p.parseThread(doc, page), nil
	default:
		return nil, fmt.Errorf("unknown page role %d for %s", page.Ctx.Role, page.URL)
	}
}

// parseRoot emits the Forum entity and one Section per index link,
// each followed by a section-listing fetch.
func (p *PhpBB) parseRoot(doc *goquery.Document, page Page) *Result {
	res := &Result{}
	res.Entities = append(res.Entities, entity.Forum{
		SpiderName: p.variant.Name,
		Title:      p.variant.Title,
	})

	doc.Find("a.forumlink").Each(func(_ int, link *goquery.Selection) {
		title := strings.TrimSpace(link.Text())
		href, ok := link.Attr("href")
		if !ok || href == "" || title == "" {
			p.log.Debug("skipping section link without href or title")
			return
		}
		fullURL := urlkey.Resolve(page.URL, href)

		res.Entities = append(res.Entities, entity.Section{
			Title: title,
			URL:   fullURL,
			Forum: entity.ByName(p.variant.Name),
		})
		res.Follow = append(res.Follow, Request{
			URL: fullURL,
			Ctx: Context{Role: RoleSection, SectionURL: fullURL, SectionTitle: title},
		})
	})

	p.log.WithField("sections", len(res.Follow)).Info("parsed forum index")
	return res
}

// parseSection emits Thread summaries from data rows and schedules the
// thread listings plus the section's remaining pages.
func (p *PhpBB) parseSection(doc *goquery.Document, page Page) *Result {
	res := &Result{}

	// Pagination quirks can repeat the last row of one page as the
	// first row of the next fetch of the same page.
	seen := make(map[string]struct{})

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		// Data rows carry the row1/row2 striping classes; header and
		// spacer rows do not.
		if row.Find(".row1, .row2").Length() == 0 {
			return
		}

		thread, ok := p.extractThreadRow(row, page)
		if !ok {
			return
		}
		if _, dup := seen[thread.URL]; dup {
			p.log.WithField("url", thread.URL).Debug("duplicate thread row on page, skipping")
			return
		}
		seen[thread.URL] = struct{}{}

		res.Entities = append(res.Entities, thread)

		threadID, _ := urlkey.ThreadIDFromURL(thread.URL)
		res.Follow = append(res.Follow, Request{
			URL: thread.URL,
			Ctx: Context{
				Role:        RoleThread,
				SectionURL:  page.Ctx.SectionURL,
				ThreadURL:   thread.URL,
				ThreadTitle: thread.Title,
				ThreadID:    threadID,
			},
		})
	})

	for _, next := range urlkey.PaginationLinks(doc, page.URL, sectionView) {
		res.Follow = append(res.Follow, Request{URL: next, Ctx: page.Ctx})
	}

	p.log.WithFields(logrus.Fields{
		"section": page.Ctx.SectionTitle,
		"threads": len(seen),
	}).Info("parsed section page")
	return res
}

// extractThreadRow pulls one thread summary out of a listing row.
// Rows missing the structural markers are decorative, not errors.
func (p *PhpBB) extractThreadRow(row *goquery.Selection, page Page) (thread entity.Thread, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("thread row extraction failed, row omitted")
			ok = false
		}
	}()

	titleLink := row.Find("td:nth-child(2) a.topictitle").First()
	title := strings.TrimSpace(titleLink.Text())
	href, hasHref := titleLink.Attr("href")
	if title == "" || !hasHref || href == "" {
		p.log.Debug("row without topic title, skipping")
		return entity.Thread{}, false
	}

	thread = entity.Thread{
		Title:   title,
		URL:     urlkey.Resolve(page.URL, href),
		Author:  strings.TrimSpace(row.Find("td:nth-child(3) .topicauthor a").First().Text()),
		Replies: bestEffortInt(row.Find("td:nth-child(4) .topicdetails").First().Text()),
		Views:   bestEffortInt(row.Find("td:nth-child(5) .topicdetails").First().Text()),
		Section: entity.ByURL(page.Ctx.SectionURL),
	}

	// The last-post cell mixes a date text node with the author
	// anchor; only the leading text node is the date.
	lastPost := row.Find("td:nth-child(6) .topicdetails").First()
	if raw := firstOwnText(lastPost); raw != "" {
		thread.LastPostDate = dates.NormalizeOrRaw(raw)
	}
	thread.LastPostAuthor = strings.TrimSpace(row.Find("td:nth-child(6) .topicdetails a").First().Text())

	if page.Ctx.SectionURL == "" {
		thread.Section = entity.NoRef()
	}
	return thread, true
}

// parseThread emits a User and a Post per post row plus the thread's
// remaining pages.
func (p *PhpBB) parseThread(doc *goquery.Document, page Page) *Result {
	res := &Result{}

	threadID := page.Ctx.ThreadID
	if threadID == 0 {
		threadID, _ = urlkey.ThreadIDFromURL(page.Ctx.ThreadURL)
	}
	if threadID == 0 {
		threadID, _ = urlkey.ThreadIDFromURL(page.URL)
	}

	posts := 0
	doc.Find("tr.row1, tr.row2").Each(func(_ int, row *goquery.Selection) {
		// A post row has the author in the first column and the body
		// in the second; anything else is board furniture.
		if row.Find("td:first-child .postauthor").Length() == 0 {
			return
		}
		if row.Find("td:nth-child(2) .postbody").Length() == 0 {
			return
		}

		if user, ok := p.extractUserRow(row); ok {
			res.Entities = append(res.Entities, user)
		}
		if post, ok := p.extractPostRow(row, page, threadID); ok {
			res.Entities = append(res.Entities, post)
			posts++
		}
	})

	for _, next := range urlkey.PaginationLinks(doc, page.URL, threadView) {
		res.Follow = append(res.Follow, Request{URL: next, Ctx: page.Ctx})
	}

	p.log.WithFields(logrus.Fields{
		"thread": page.Ctx.ThreadTitle,
		"posts":  posts,
	}).Info("parsed thread page")
	return res
}

// extractUserRow reads the author block of a post row.
func (p *PhpBB) extractUserRow(row *goquery.Selection) (user entity.User, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("user extraction failed, row omitted")
			ok = false
		}
	}()

	username := strings.TrimSpace(row.Find("td:first-child .postauthor").First().Text())
	if username == "" {
		return entity.User{}, false
	}
	user = entity.User{Username: username}

	details := row.Find("td:first-child .postdetails").First()
	if details.Length() > 0 {
		if html, err := goquery.OuterHtml(details); err == nil {
			if m := joinDateDetail.FindStringSubmatch(html); m != nil {
				user.JoinDate = dates.NormalizeOrRaw(m[1])
			}
			if m := postCountDetail.FindStringSubmatch(html); m != nil {
				user.PostsCount = bestEffortInt(m[1])
			}
		}
	}
	return user, true
}

// extractPostRow reads one post out of a thread row. The post date
// lives in the following table row.
func (p *PhpBB) extractPostRow(row *goquery.Selection, page Page, threadID int64) (post entity.Post, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("post extraction failed, row omitted")
			ok = false
		}
	}()

	username := strings.TrimSpace(row.Find("td:first-child .postauthor").First().Text())
	if username == "" {
		return entity.Post{}, false
	}

	post = entity.Post{
		Username: username,
		User:     entity.ByName(username),
	}
	if threadID != 0 {
		post.Thread = entity.ByID(threadID)
	} else if page.Ctx.ThreadURL != "" {
		post.Thread = entity.ByURL(page.Ctx.ThreadURL)
	}

	if href, hasHref := row.Find("td:nth-child(2) .postsubject a").First().Attr("href"); hasHref && href != "" {
		post.URL = urlkey.Resolve(page.URL, href)
		if m := postNumberParam.FindStringSubmatch(href); m != nil {
			post.Number, _ = strconv.ParseInt(m[1], 10, 64)
		}
	}

	body := row.Find("td:nth-child(2) .postbody").First()
	if bodyHTML, err := goquery.OuterHtml(body); err == nil {
		post.Content, post.ContentURLs = content.NormalizeMarkup(bodyHTML, page.URL)
	} else {
		post.ContentURLs = []string{}
	}

	// The post date sits in the next table row.
	if raw := firstOwnText(row.Next().Find(".postbottom").First()); raw != "" {
		post.PostDate = dates.NormalizeOrRaw(raw)
	}
	return post, true
}

// firstOwnText returns the first non-empty direct text node of sel,
// skipping text contributed by child elements.
func firstOwnText(sel *goquery.Selection) string {
	var out string
	sel.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				out = t
				return false
			}
		}
		return true
	})
	return out
}

// DirectThread supports targeted re-scraping of one known thread
// without walking the section tree: minimal Forum/Section/Thread
// placeholders are emitted and the crawl jumps straight to the post
// listing. The section URL is rebuilt from the thread's f= parameter.
func (p *PhpBB) DirectThread(threadURL string) (*Result, error) {
	if threadURL == "" {
		return nil, fmt.Errorf("direct thread mode requires a thread URL")
	}

	res := &Result{}
	res.Entities = append(res.Entities, entity.Forum{
		SpiderName: p.variant.Name,
		Title:      p.variant.Title,
	})

	sectionURL := sectionURLFromThread(threadURL)
	if sectionURL != "" {
		res.Entities = append(res.Entities, entity.Section{
			Title: "manual",
			URL:   sectionURL,
			Forum: entity.ByName(p.variant.Name),
		})
	}

	thread := entity.Thread{Title: "manual", URL: threadURL}
	if sectionURL != "" {
		thread.Section = entity.ByURL(sectionURL)
	}
	res.Entities = append(res.Entities, thread)

	threadID, _ := urlkey.ThreadIDFromURL(threadURL)
	res.Follow = append(res.Follow, Request{
		URL: threadURL,
		Ctx: Context{
			Role:        RoleThread,
			SectionURL:  sectionURL,
			ThreadURL:   threadURL,
			ThreadTitle: "manual",
			ThreadID:    threadID,
		},
	})
	return res, nil
}

// sectionURLFromThread substitutes the thread's forum-section query
// parameter into the section-listing path template.
func sectionURLFromThread(threadURL string) string {
	parsed, err := url.Parse(threadURL)
	if err != nil {
		return ""
	}
	f := parsed.Query().Get("f")
	if f == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s/%s?f=%s", parsed.Scheme, parsed.Host, sectionView, f)
}

// bestEffortInt parses a counter column, defaulting to zero on
// malformed or missing text. Counters are statistics, not identity.
func bestEffortInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
