// Package parser turns fetched forum pages into entity streams and
// follow-up page requests. Parsers are pure with respect to the page:
// all cross-page knowledge travels in the request Context.
package parser

import (
	"fmt"
	"io"

	"github.com/kmazurek/forum-archiver/internal/entity"
)

// Role identifies what kind of listing a fetched page is.
type Role int

const (
	// RoleRoot is the forum index listing section links.
	RoleRoot Role = iota
	// RoleSection is a section page listing thread rows.
	RoleSection
	// RoleThread is a thread page listing post rows.
	RoleThread
)

func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "root"
	case RoleSection:
		return "section"
	case RoleThread:
		return "thread"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Context is the correlation data carried from the request that
// produced a page: which section/thread the page belongs to and the
// thread id when it is already resolved.
type Context struct {
	Role         Role
	SectionURL   string
	SectionTitle string
	ThreadURL    string
	ThreadTitle  string
	ThreadID     int64
}

// Request is a follow-up page the crawl driver should fetch, with the
// context to hand back on parse.
type Request struct {
	URL string
	Ctx Context
}

// Page is one fetched page handed to a parser.
type Page struct {
	URL  string
	Body io.Reader
	Ctx  Context
}

// Result is the ordered output of parsing one page.
type Result struct {
	Entities []entity.Entity
	Follow   []Request
}

// Parser extracts entities from the pages of one forum variant.
type Parser interface {
	// Name is the spider name identifying the forum source.
	Name() string
	// Start returns the root page request for a full sweep.
	Start() Request
	// Parse walks one fetched page according to its context role.
	Parse(page Page) (*Result, error)
	// DirectThread synthesizes placeholder parents for a single known
	// thread URL and jumps straight to its post listing.
	DirectThread(threadURL string) (*Result, error)
}
