package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kmazurek/forum-archiver/internal/parser"
)

// forumsCmd lists the registered forum variants.
var forumsCmd = &cobra.Command{
	Use:   "forums",
	Short: "List the forums this archiver can crawl",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Available forums:")
		for _, name := range parser.Names() {
			v, _ := parser.Lookup(name)
			fmt.Printf("  %-20s %-20s %s\n", v.Name, v.Title, v.StartURL)
		}
	},
}

func init() {
	rootCmd.AddCommand(forumsCmd)
}
