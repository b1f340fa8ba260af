package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datagata/gata/pkg/models"
)

func newApprovedCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approved",
		Short: "Inspect approved queries",
	}

	var user, table string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's approved queries, for one table or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath, cmd.Flags().Changed("config"), "stderr")
			if err != nil {
				return err
			}
			defer a.Close()

			store := a.approvals()
			ctx := cmd.Context()
			var queries []models.ApprovedQuery
			if table != "" {
				queries, err = store.List(ctx, user, table)
			} else {
				queries, err = store.ListUser(ctx, user)
			}
			if err != nil {
				return err
			}
			if len(queries) == 0 {
				fmt.Println("No approved queries found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tQUESTION\tQUERY\tAPPROVED")
			for _, q := range queries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					q.TableName, q.Question, q.TranslatedQuery, q.ApprovedAt.Format("2006-01-02T15:04:05"))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&user, "user", "anonymous", "user whose approvals to list")
	listCmd.Flags().StringVar(&table, "table", "", "restrict to one table")

	cmd.AddCommand(listCmd)
	return cmd
}
