package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTablesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Inspect the table catalog",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath, cmd.Flags().Changed("config"), "stderr")
			if err != nil {
				return err
			}
			defer a.Close()

			cat := a.catalog()
			tables, err := cat.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(tables) == 0 {
				fmt.Println("No tables registered.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FULL NAME\tTABLE\tCOLUMNS\tSTREAMING\tDESCRIPTION")
			for _, t := range tables {
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n",
					t.FullName, t.TableName, len(t.Columns), t.IsStreaming, t.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			st, err := cat.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("\n%d tables, %d cached queries, %d approved queries\n",
				st.Tables, st.CachedQueries, st.ApprovedQueries)
			return nil
		},
	}

	cmd.AddCommand(listCmd)
	return cmd
}
