// Package store persists extracted entities into SQLite with stable
// numeric keys. It is the reconciliation point of the crawl: entities
// arrive out of order and possibly duplicated across pagination
// sweeps, with parent references that may be ids, lookup keys or URLs.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/kmazurek/forum-archiver/internal/entity"
)

// Store owns one SQLite connection and the per-run lookup caches that
// map URLs and names to row ids. Caches are rebuilt fresh each run and
// never persisted; writes are serialized through this one connection.
type Store struct {
	db  *sql.DB
	log logrus.FieldLogger

	forumNameToID  map[string]int64
	sectionURLToID map[string]int64
	threadURLToID  map[string]int64
	userNameToID   map[string]int64
}

// Open connects to the SQLite database at path, creating the file and
// its schema when missing. Pass ":memory:" for an ephemeral store.
func Open(path string, log logrus.FieldLogger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{
		db:             db,
		log:            log.WithField("component", "store"),
		forumNameToID:  make(map[string]int64),
		sectionURLToID: make(map[string]int64),
		threadURLToID:  make(map[string]int64),
		userNameToID:   make(map[string]int64),
	}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS forums (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			spider_name TEXT NOT NULL UNIQUE,
			title TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			forum_id INTEGER,
			title TEXT,
			url TEXT UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (forum_id) REFERENCES forums (id) ON DELETE SET NULL
		)`,
		`CREATE TABLE IF NOT EXISTS threads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			section_id INTEGER,
			title TEXT,
			url TEXT UNIQUE,
			author TEXT,
			replies INTEGER,
			views INTEGER,
			last_post_date TEXT,
			last_post_author TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (section_id) REFERENCES sections (id) ON DELETE SET NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE,
			join_date TEXT,
			posts_count INTEGER,
			religion TEXT,
			gender TEXT,
			localization TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		// FK constraints to threads/users are deliberately omitted so
		// a post can be stored before its parents have resolved.
		`CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id INTEGER,
			user_id INTEGER,
			post_number INTEGER,
			content TEXT,
			content_urls TEXT,
			post_date TEXT,
			url TEXT,
			username TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (thread_id, post_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_thread_id ON posts(thread_id)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Apply routes one entity to its upsert. The entity set is closed; an
// unhandled kind is a programming error and fails loudly.
func (s *Store) Apply(e entity.Entity) error {
	var err error
	switch v := e.(type) {
	case entity.Forum:
		_, err = s.UpsertForum(v)
	case entity.Section:
		_, err = s.UpsertSection(v)
	case entity.Thread:
		_, err = s.UpsertThread(v)
	case entity.User:
		_, err = s.UpsertUser(v)
	case entity.Post:
		_, err = s.UpsertPost(v)
	default:
		err = fmt.Errorf("unhandled entity type %T", e)
	}
	return err
}

// UpsertForum stores a forum row keyed by spider name. Re-inserting an
// existing name is a no-op returning the existing id.
func (s *Store) UpsertForum(f entity.Forum) (int64, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO forums (spider_name, title) VALUES (?, ?)`,
		f.SpiderName, nullString(f.Title),
	)
	if err != nil {
		return 0, fmt.Errorf("insert forum %q: %w", f.SpiderName, err)
	}

	id, err := insertedOrExistingID(res, func() (int64, error) {
		return s.selectID(`SELECT id FROM forums WHERE spider_name = ?`, f.SpiderName)
	})
	if err != nil {
		return 0, fmt.Errorf("resolve forum id %q: %w", f.SpiderName, err)
	}

	s.forumNameToID[f.SpiderName] = id
	return id, nil
}

// UpsertSection stores a section row keyed by URL. A missing forum
// reference is not an error; the row keeps a null forum_id.
func (s *Store) UpsertSection(sec entity.Section) (int64, error) {
	forumID := s.resolveForumRef(sec.Forum)

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO sections (forum_id, title, url) VALUES (?, ?, ?)`,
		forumID, nullString(sec.Title), sec.URL,
	)
	if err != nil {
		return 0, fmt.Errorf("insert section %q: %w", sec.URL, err)
	}

	id, err := insertedOrExistingID(res, func() (int64, error) {
		return s.selectID(`SELECT id FROM sections WHERE url = ?`, sec.URL)
	})
	if err != nil {
		return 0, fmt.Errorf("resolve section id %q: %w", sec.URL, err)
	}

	if sec.URL != "" {
		s.sectionURLToID[sec.URL] = id
	}
	return id, nil
}

// UpsertThread stores a thread row keyed by URL. A section referenced
// by URL that has not been seen yet gets a placeholder row with a null
// forum reference, mirroring real crawl interleaving.
func (s *Store) UpsertThread(t entity.Thread) (int64, error) {
	sectionID, err := s.resolveSectionParent(t.Section)
	if err != nil {
		return 0, err
	}

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO threads (
			section_id, title, url, author, replies, views,
			last_post_date, last_post_author
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sectionID, nullString(t.Title), t.URL, nullString(t.Author),
		t.Replies, t.Views, nullString(t.LastPostDate), nullString(t.LastPostAuthor),
	)
	if err != nil {
		return 0, fmt.Errorf("insert thread %q: %w", t.URL, err)
	}

	id, err := insertedOrExistingID(res, func() (int64, error) {
		return s.selectID(`SELECT id FROM threads WHERE url = ?`, t.URL)
	})
	if err != nil {
		return 0, fmt.Errorf("resolve thread id %q: %w", t.URL, err)
	}

	if t.URL != "" {
		s.threadURLToID[t.URL] = id
	}
	return id, nil
}

// UpsertUser stores a user row keyed by username. Demographic fields
// are first-write-wins: re-inserting an existing username is a no-op.
func (s *Store) UpsertUser(u entity.User) (int64, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO users (
			username, join_date, posts_count, religion, gender, localization
		) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, nullString(u.JoinDate), nullInt64(u.PostsCount),
		nullString(u.Religion), nullString(u.Gender), nullString(u.Localization),
	)
	if err != nil {
		return 0, fmt.Errorf("insert user %q: %w", u.Username, err)
	}

	id, err := insertedOrExistingID(res, func() (int64, error) {
		return s.selectID(`SELECT id FROM users WHERE username = ?`, u.Username)
	})
	if err != nil {
		return 0, fmt.Errorf("resolve user id %q: %w", u.Username, err)
	}

	s.userNameToID[u.Username] = id
	return id, nil
}

// UpsertPost stores a post row. Re-inserting the same (thread, post
// number) pair replaces the prior row: repeated pagination sweeps may
// re-fetch the same post with more complete data. Unresolvable thread
// or user references leave the columns null, never fail the write.
func (s *Store) UpsertPost(p entity.Post) (int64, error) {
	threadID := s.resolveThreadRef(p.Thread)
	userID := s.resolveUserRef(p.User, p.Username)

	contentURLs, err := json.Marshal(p.ContentURLs)
	if err != nil {
		return 0, fmt.Errorf("encode content urls for post %d: %w", p.Number, err)
	}

	res, err := s.db.Exec(
		`INSERT OR REPLACE INTO posts (
			thread_id, user_id, post_number, content, content_urls,
			post_date, url, username
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		threadID, userID, p.Number, p.Content, string(contentURLs),
		nullString(p.PostDate), nullString(p.URL), nullString(p.Username),
	)
	if err != nil {
		return 0, fmt.Errorf("insert post %d: %w", p.Number, err)
	}
	return res.LastInsertId()
}

// resolveForumRef maps a forum reference to an id, or nil when it
// cannot be resolved in this run.
func (s *Store) resolveForumRef(ref entity.Ref) sql.NullInt64 {
	switch ref.Kind {
	case entity.RefID:
		return sql.NullInt64{Int64: ref.ID, Valid: true}
	case entity.RefName:
		if id, ok := s.forumNameToID[ref.Key]; ok {
			return sql.NullInt64{Int64: id, Valid: true}
		}
		if id, err := s.selectID(`SELECT id FROM forums WHERE spider_name = ?`, ref.Key); err == nil {
			s.forumNameToID[ref.Key] = id
			return sql.NullInt64{Int64: id, Valid: true}
		}
	}
	s.log.WithField("ref", ref.Key).Debug("forum reference unresolved, storing null")
	return sql.NullInt64{}
}

// resolveSectionParent resolves a thread's section reference,
// creating a placeholder section (null forum) for a URL reference
// that has not been seen yet.
func (s *Store) resolveSectionParent(ref entity.Ref) (sql.NullInt64, error) {
	switch ref.Kind {
	case entity.RefID:
		return sql.NullInt64{Int64: ref.ID, Valid: true}, nil
	case entity.RefURL:
		if id, ok := s.sectionURLToID[ref.Key]; ok {
			return sql.NullInt64{Int64: id, Valid: true}, nil
		}
		if id, err := s.selectID(`SELECT id FROM sections WHERE url = ?`, ref.Key); err == nil {
			s.sectionURLToID[ref.Key] = id
			return sql.NullInt64{Int64: id, Valid: true}, nil
		}
		// Child arrived before its parent; insert a stub the later
		// full section upsert will match by URL.
		res, err := s.db.Exec(`INSERT INTO sections (forum_id, title, url) VALUES (NULL, NULL, ?)`, ref.Key)
		if err != nil {
			return sql.NullInt64{}, fmt.Errorf("insert placeholder section %q: %w", ref.Key, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return sql.NullInt64{}, fmt.Errorf("placeholder section id %q: %w", ref.Key, err)
		}
		s.sectionURLToID[ref.Key] = id
		s.log.WithField("url", ref.Key).Debug("created placeholder section for early thread")
		return sql.NullInt64{Int64: id, Valid: true}, nil
	}
	return sql.NullInt64{}, nil
}

// resolveThreadRef maps a post's thread reference to an id, or nil.
func (s *Store) resolveThreadRef(ref entity.Ref) sql.NullInt64 {
	switch ref.Kind {
	case entity.RefID:
		return sql.NullInt64{Int64: ref.ID, Valid: true}
	case entity.RefURL:
		if id, ok := s.threadURLToID[ref.Key]; ok {
			return sql.NullInt64{Int64: id, Valid: true}
		}
		if id, err := s.selectID(`SELECT id FROM threads WHERE url = ?`, ref.Key); err == nil {
			s.threadURLToID[ref.Key] = id
			return sql.NullInt64{Int64: id, Valid: true}
		}
	}
	s.log.WithField("ref", ref.Key).Debug("thread reference unresolved, storing null")
	return sql.NullInt64{}
}

// resolveUserRef maps a post's user reference to an id, falling back
// to the author username, or nil when the user is unknown.
func (s *Store) resolveUserRef(ref entity.Ref, username string) sql.NullInt64 {
	key := ""
	switch ref.Kind {
	case entity.RefID:
		return sql.NullInt64{Int64: ref.ID, Valid: true}
	case entity.RefName:
		key = ref.Key
	default:
		key = username
	}
	if key == "" {
		return sql.NullInt64{}
	}
	if id, ok := s.userNameToID[key]; ok {
		return sql.NullInt64{Int64: id, Valid: true}
	}
	if id, err := s.selectID(`SELECT id FROM users WHERE username = ?`, key); err == nil {
		s.userNameToID[key] = id
		return sql.NullInt64{Int64: id, Valid: true}
	}
	s.log.WithField("username", key).Debug("user reference unresolved, storing null")
	return sql.NullInt64{}
}

func (s *Store) selectID(query string, arg any) (int64, error) {
	var id int64
	err := s.db.QueryRow(query, arg).Scan(&id)
	return id, err
}

// insertedOrExistingID returns the new row id after an insert, or
// falls back to lookup when INSERT OR IGNORE hit an existing row.
func insertedOrExistingID(res sql.Result, lookup func() (int64, error)) (int64, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		return res.LastInsertId()
	}
	return lookup()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(i int64) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: i, Valid: true}
}
