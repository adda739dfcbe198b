package store

import "fmt"

// Counts are total row counts per table, for crawl summaries.
type Counts struct {
	Forums   int64
	Sections int64
	Threads  int64
	Users    int64
	Posts    int64
}

// ForumSummary describes one stored forum with its reachable child
// counts. Orphaned rows (null parents) appear only in the totals.
type ForumSummary struct {
	ID       int64
	Spider   string
	Title    string
	Sections int64
	Threads  int64
	Posts    int64
}

// TotalCounts reports row counts across all five tables.
func (s *Store) TotalCounts() (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int64
	}{
		{"forums", &c.Forums},
		{"sections", &c.Sections},
		{"threads", &c.Threads},
		{"users", &c.Users},
		{"posts", &c.Posts},
	} {
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + q.table).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return c, nil
}

// ForumSummaries reports every stored forum with section, thread and
// post counts resolved through the foreign-key chain.
func (s *Store) ForumSummaries() ([]ForumSummary, error) {
	rows, err := s.db.Query(`
		SELECT f.id, f.spider_name, COALESCE(f.title, ''),
			(SELECT COUNT(*) FROM sections sc WHERE sc.forum_id = f.id),
			(SELECT COUNT(*) FROM threads t JOIN sections sc ON t.section_id = sc.id WHERE sc.forum_id = f.id),
			(SELECT COUNT(*) FROM posts p JOIN threads t ON p.thread_id = t.id
				JOIN sections sc ON t.section_id = sc.id WHERE sc.forum_id = f.id)
		FROM forums f ORDER BY f.id`)
	if err != nil {
		return nil, fmt.Errorf("query forum summaries: %w", err)
	}
	defer rows.Close()

	var summaries []ForumSummary
	for rows.Next() {
		var fs ForumSummary
		if err := rows.Scan(&fs.ID, &fs.Spider, &fs.Title, &fs.Sections, &fs.Threads, &fs.Posts); err != nil {
			return nil, fmt.Errorf("scan forum summary: %w", err)
		}
		summaries = append(summaries, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forum summaries: %w", err)
	}
	return summaries, nil
}

// ThreadID looks up a stored thread id by canonical URL.
func (s *Store) ThreadID(url string) (int64, bool) {
	id, err := s.selectID(`SELECT id FROM threads WHERE url = ?`, url)
	if err != nil {
		return 0, false
	}
	return id, true
}
