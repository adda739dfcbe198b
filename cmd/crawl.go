package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kmazurek/forum-archiver/internal/crawler"
	"github.com/kmazurek/forum-archiver/internal/parser"
	"github.com/kmazurek/forum-archiver/internal/store"
)

var (
	crawlForums   []string
	onlyThreadURL string
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl one or more forums into the database",
	Long: `Crawl forum targets and persist sections, threads, users and posts.

Examples:
  # Crawl a single forum
  forum-archiver crawl --forum wiara

  # Crawl several forums into one database
  forum-archiver crawl --forum wiara --forum radio_katolik

  # Crawl everything
  forum-archiver crawl --forum all

  # Re-scrape a single known thread without walking the section tree
  forum-archiver crawl --forum wiara --only-thread-url "https://forum.wiara.pl/viewtopic.php?f=5&t=42"`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringArrayVarP(&crawlForums, "forum", "f", []string{"all"},
		"forum to crawl (repeatable; 'all' crawls every registered forum)")
	crawlCmd.Flags().StringVar(&onlyThreadURL, "only-thread-url", "",
		"crawl only this thread URL (requires exactly one --forum)")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	targets, err := expandForumNames(crawlForums)
	if err != nil {
		return err
	}
	if onlyThreadURL != "" && len(targets) != 1 {
		return fmt.Errorf("--only-thread-url requires exactly one --forum")
	}

	st, err := store.Open(viper.GetString("db"), log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	// Stop between pages on Ctrl+C; committed rows stay committed.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := crawler.Config{
		RateLimitMs:   viper.GetInt("rate-limit"),
		MaxRetries:    viper.GetInt("max-retries"),
		UserAgent:     viper.GetString("user-agent"),
		OnlyThreadURL: onlyThreadURL,
	}

	for _, name := range targets {
		p, err := parser.ForName(name, log)
		if err != nil {
			return err
		}
		c, err := crawler.New(cfg, p, st, log)
		if err != nil {
			return fmt.Errorf("failed to create crawler for %s: %w", name, err)
		}

		result, err := c.Run(ctx)
		if err != nil {
			return fmt.Errorf("crawl of %s failed: %w", name, err)
		}
		fmt.Printf("Forum %s: %d pages fetched, %d failed, %d entities stored\n",
			name, result.PagesFetched, result.PagesFailed, result.Entities)
	}

	counts, err := st.TotalCounts()
	if err != nil {
		return fmt.Errorf("failed to read totals: %w", err)
	}
	fmt.Printf("\nDatabase totals: %d forums, %d sections, %d threads, %d users, %d posts\n",
		counts.Forums, counts.Sections, counts.Threads, counts.Users, counts.Posts)
	return nil
}

// expandForumNames resolves the --forum flags, expanding "all" and
// rejecting unknown names before any network traffic happens.
func expandForumNames(requested []string) ([]string, error) {
	for _, name := range requested {
		if name == "all" {
			return parser.Names(), nil
		}
	}
	seen := make(map[string]struct{})
	var targets []string
	for _, name := range requested {
		if _, ok := parser.Lookup(name); !ok {
			return nil, fmt.Errorf("unknown forum %q (known: %v, or 'all')", name, parser.Names())
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		targets = append(targets, name)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no forums selected")
	}
	return targets, nil
}
