package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/memtrack/track"
	"github.com/joshuapare/memtrack/track/stats"
)

func init() {
	rootCmd.AddCommand(newCategoriesCmd())
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the category and level names profiles accept",
		Long: `The categories command lists every memory category a phase can be
tagged with and every tracking level a profile can request. Category
matching ignores case, spaces, and underscores, so "thread_stack" and
"Thread Stack" name the same category.

Example:
  memstress categories
  memstress categories --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCategories()
		},
	}
}

func runCategories() error {
	categories := make([]string, 0, stats.NumCategories)
	for i := 0; i < stats.NumCategories; i++ {
		categories = append(categories, stats.Category(i).String())
	}
	levels := []string{
		track.LevelMinimal.String(),
		track.LevelSummary.String(),
		track.LevelDetail.String(),
	}

	if jsonOut {
		return printJSON(struct {
			Categories []string `json:"categories"`
			Levels     []string `json:"levels"`
		}{categories, levels})
	}

	printInfo("Categories:\n")
	for _, name := range categories {
		printInfo("  %s\n", name)
	}
	printInfo("\nLevels:\n")
	for _, name := range levels {
		printInfo("  %s\n", name)
	}
	return nil
}
