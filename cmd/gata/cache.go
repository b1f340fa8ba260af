package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datagata/gata/pkg/cache"
	"github.com/datagata/gata/pkg/models"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the query cache",
	}

	// withCache opens the app and hands its cache to fn.
	withCache := func(cmd *cobra.Command, fn func(c *cache.Cache) error) error {
		a, err := newApp(cmd.Context(), *configPath, cmd.Flags().Changed("config"), "stderr")
		if err != nil {
			return err
		}
		defer a.Close()
		c := a.cache()
		if c == nil {
			return fmt.Errorf("query cache is disabled in config")
		}
		return fn(c)
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(c *cache.Cache) error {
				stats, err := c.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Entries: %d\n", stats.Entries)
				return nil
			})
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(c *cache.Cache) error {
				if expiredOnly {
					n, err := c.Purge(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Printf("Expired cache entries cleared: %d\n", n)
					return nil
				}
				n, err := c.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("All cache entries cleared: %d\n", n)
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	var (
		threshold float64
		mode      string
	)
	findCmd := &cobra.Command{
		Use:   "find <prompt>",
		Short: "Look up the most similar cached prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qm := models.QueryMode(mode)
			if qm != "" && !qm.Valid() {
				return fmt.Errorf("--mode must be webllm or motherduck")
			}
			return withCache(cmd, func(c *cache.Cache) error {
				m, err := c.FindSimilar(cmd.Context(), strings.Join(args, " "), qm, threshold)
				if err != nil {
					return err
				}
				if m == nil {
					fmt.Println("No cached query above the threshold.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "ID\t%s\n", m.ID)
				fmt.Fprintf(w, "SIMILARITY\t%.2f\n", m.Similarity)
				fmt.Fprintf(w, "PROMPT\t%s\n", m.Prompt)
				fmt.Fprintf(w, "MODE\t%s\n", m.QueryMode)
				fmt.Fprintf(w, "CREATED\t%s\n", m.CreatedAt.Format("2006-01-02T15:04:05"))
				fmt.Fprintf(w, "QUERY\t%s\n", m.Query)
				return w.Flush()
			})
		},
	}
	findCmd.Flags().Float64Var(&threshold, "threshold", cache.DefaultThreshold, "similarity the match must exceed")
	findCmd.Flags().StringVar(&mode, "mode", "", "restrict to webllm or motherduck entries")

	var limit int
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List the newest cached queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(c *cache.Cache) error {
				entries, err := c.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Println("Cache is empty.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CREATED\tMODE\tPROMPT\tQUERY")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						e.CreatedAt.Format("2006-01-02T15:04:05"), e.QueryMode, e.Prompt, e.Query)
				}
				return w.Flush()
			})
		},
	}
	recentCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")

	cmd.AddCommand(statsCmd, clearCmd, findCmd, recentCmd)
	return cmd
}
