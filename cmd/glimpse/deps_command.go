package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"glimpse/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check the helper binaries the configuration relies on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := deps.CheckBinaries(deps.Requirements(cfg))
			if asJSON {
				return writeJSONList(cmd, results)
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				state := "available"
				if !r.Available {
					state = r.Detail
				}
				rows = append(rows, []string{r.Name, r.Command, yesNo(!r.Optional), state, r.Description})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]column{
				{Header: "Name"},
				{Header: "Command"},
				{Header: "Required"},
				{Header: "State"},
				{Header: "Purpose", MaxWidth: 60},
			}, rows))
			if missing := deps.MissingRequired(results); len(missing) > 0 {
				return fmt.Errorf("%d required helper(s) missing", len(missing))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit results as JSON")
	return cmd
}
