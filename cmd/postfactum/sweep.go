package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-postfactum/internal/api"
	"github.com/ahrav/go-postfactum/internal/application"
)

func newSweepCmd(root *rootOptions) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "sweep <scenarios.yaml>",
		Short: "Compute target performances for every alternative in a scenario file",
		Long: `Resolve a YAML scenario file into one question per alternative and
answer them concurrently. Failures are reported per alternative and never
abort the batch. The report is printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := application.LoadScenarioFile(args[0])
			if err != nil {
				return err
			}
			rt, err := root.newApp(cmd, func(cfg *application.Config) {
				if cmd.Flags().Changed("concurrency") {
					cfg.Sweep.MaxConcurrency = concurrency
				}
			})
			if err != nil {
				return err
			}

			results, err := rt.engine.Sweep(cmd.Context(), scenarios)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.NewSweepResponse(results))
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 4, "scenarios solved at once")
	return cmd
}
