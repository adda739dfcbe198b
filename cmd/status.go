package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kmazurek/forum-archiver/internal/store"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show row counts for the crawled database",
	Long: `Show what has been stored so far: per-forum section/thread/post
counts plus database totals.

Examples:
  forum-archiver status
  forum-archiver status --db data/databases/forums_unified.db`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := viper.GetString("db")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("No database found at %s - run a crawl first\n", path)
		return nil
	}

	st, err := store.Open(path, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	summaries, err := st.ForumSummaries()
	if err != nil {
		return fmt.Errorf("failed to read forum summaries: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Println("Database is empty - run a crawl first")
		return nil
	}

	fmt.Printf("Crawled forums in %s:\n\n", path)
	for _, s := range summaries {
		title := s.Title
		if title == "" {
			title = s.Spider
		}
		fmt.Printf("%-20s - %s (Sections: %d, Threads: %d, Posts: %d)\n",
			s.Spider, title, s.Sections, s.Threads, s.Posts)
	}

	counts, err := st.TotalCounts()
	if err != nil {
		return fmt.Errorf("failed to read totals: %w", err)
	}
	fmt.Printf("\nTotals: %d forums, %d sections, %d threads, %d users, %d posts\n",
		counts.Forums, counts.Sections, counts.Threads, counts.Users, counts.Posts)
	return nil
}
