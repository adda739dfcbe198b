package cmd

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	dbPath      string
	rateLimitMs int
	maxRetries  int
	userAgent   string
	verbose     bool

	log = logrus.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "forum-archiver",
	Short: "A crawler for phpBB religious discussion forums",
	Long: `A batch crawler for phpBB-based religious discussion forums that
extracts sections, threads, users and posts into a SQLite database
with stable cross-referencing keys:
- Full section-tree sweeps or targeted single-thread re-scrapes
- Idempotent upserts, safe to re-run against the same database
- Rate limiting to be respectful to the boards
- Multiple forum targets sharing one unified schema`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			log.SetLevel(logrus.DebugLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.forum-archiver.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: data/databases/forums_unified.db)")
	rootCmd.PersistentFlags().IntVar(&rateLimitMs, "rate-limit", 1000, "rate limit between requests in milliseconds")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "max-retries", 3, "maximum number of retries for failed requests")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "custom user agent (default: random)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("rate-limit", rootCmd.PersistentFlags().Lookup("rate-limit"))
	viper.BindPFlag("max-retries", rootCmd.PersistentFlags().Lookup("max-retries"))
	viper.BindPFlag("user-agent", rootCmd.PersistentFlags().Lookup("user-agent"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".forum-archiver" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".forum-archiver")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// Set default values
	viper.SetDefault("db", filepath.Join("data", "databases", "forums_unified.db"))
	viper.SetDefault("rate-limit", 1000)
	viper.SetDefault("max-retries", 3)
	viper.SetDefault("verbose", false)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil && verbose {
		log.WithField("file", viper.ConfigFileUsed()).Info("using config file")
	}
}
