// Package entity defines the record types emitted by page parsers and
// consumed by the store. The set of entity kinds is closed; the store
// dispatches on it exhaustively.
package entity

// Entity is one extracted forum record. Implementations are exactly
// Forum, Section, Thread, User and Post.
type Entity interface {
	isEntity()
}

// RefKind tags how a parent reference should be resolved.
type RefKind int

const (
	// RefUnknown means no parent reference was available.
	RefUnknown RefKind = iota
	// RefID carries an already-resolved numeric row id.
	RefID
	// RefName carries a lookup key (spider name or username).
	RefName
	// RefURL carries a canonical URL lookup key.
	RefURL
)

// Ref is a parent reference as emitted by a parser. Crawl order is
// interleaved, so a Ref may point at a row that does not exist yet;
// resolution is the store's job.
type Ref struct {
	Kind RefKind
	ID   int64
	Key  string
}

// NoRef returns an absent reference.
func NoRef() Ref { return Ref{} }

// ByID returns a reference to an already-resolved row id.
func ByID(id int64) Ref { return Ref{Kind: RefID, ID: id} }

// ByName returns a reference keyed by name (spider name, username).
func ByName(name string) Ref { return Ref{Kind: RefName, Key: name} }

// ByURL returns a reference keyed by canonical URL.
func ByURL(url string) Ref { return Ref{Kind: RefURL, Key: url} }

// Forum is one crawled source site. Created once per crawl run.
type Forum struct {
	SpiderName string
	Title      string
}

// Section is a sub-board within a forum, uniquely identified by URL.
type Section struct {
	Title string
	URL   string
	Forum Ref
}

// Thread is a titled discussion, uniquely identified by URL. Counters
// and last-post fields are best-effort statistics.
type Thread struct {
	Title          string
	URL            string
	Author         string
	Replies        int64
	Views          int64
	LastPostDate   string
	LastPostAuthor string
	Section        Ref
}

// User is a forum account keyed by username. Demographic fields are
// optional and first-write-wins in the store.
type User struct {
	Username     string
	JoinDate     string
	PostsCount   int64
	Religion     string
	Gender       string
	Localization string
}

// Post is one message in a thread. Content arrives with quoted replies
// already stripped; ContentURLs preserves document order and repeats.
type Post struct {
	Thread      Ref
	User        Ref
	Username    string
	Number      int64
	Content     string
	ContentURLs []string
	PostDate    string
	URL         string
}

func (Forum) isEntity()   {}
func (Section) isEntity() {}
func (Thread) isEntity()  {}
func (User) isEntity()    {}
func (Post) isEntity()    {}
