package main

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/datagata/gata/pkg/flags"
	"github.com/datagata/gata/pkg/router"
)

func newQueryCmd(configPath *string) *cobra.Command {
	var (
		tables  []string
		user    string
		tier    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Translate a question through the configured provider and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath, cmd.Flags().Changed("config"), "stderr")
			if err != nil {
				return err
			}
			defer a.Close()

			agg, err := a.aggregator(nil)
			if err != nil {
				return err
			}
			r, err := a.router(agg)
			if err != nil {
				return err
			}

			fc := flags.Context{UserKey: user, Tier: tier}
			if fc.Anonymous() {
				fc.UserKey = "anonymous"
			}
			resp, err := r.Execute(ctx, router.Request{
				Query:      strings.Join(args, " "),
				TableNames: tables,
				Context:    fc,
				Timeout:    timeout,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringSliceVarP(&tables, "table", "t", nil, "table the question is about (repeatable)")
	cmd.Flags().StringVar(&user, "user", "", "user id for provider targeting (default anonymous)")
	cmd.Flags().StringVar(&tier, "tier", "free", "user tier for provider targeting")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override the provider timeout")
	return cmd
}
