package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-postfactum/internal/application"
	"github.com/ahrav/go-postfactum/internal/domain"
)

type solveOptions struct {
	id           string
	performances []float64
	weights      []float64
	targetR      float64
	exclude      []int
	constantWM   bool
	timeLimit    time.Duration
	verbose      bool
}

func newSolveCmd(root *rootOptions) *cobra.Command {
	opts := &solveOptions{}
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Compute the target performances of one alternative",
		Long: `Compute the minimal change of one alternative's performances that
reaches the target closeness coefficient. The result is printed as JSON.

Examples:
  postfactum solve -p 0.8,0.5 -w 1,0.6 -r 0.9
  postfactum solve -p 0.8,0.5 -w 1,0.6 -r 0.8 --exclude 0
  postfactum solve -p 0.5,1 -w 1,0.2 -r 0.6 --constant-wm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := root.newApp(cmd, func(cfg *application.Config) {
				if cmd.Flags().Changed("time-limit") {
					cfg.Solver.TimeLimit = opts.timeLimit
				}
				if opts.verbose {
					cfg.Solver.Verbose = true
				}
			})
			if err != nil {
				return err
			}

			adj, err := rt.engine.Adjust(cmd.Context(), domain.Scenario{
				ID:           opts.id,
				Performances: opts.performances,
				Weights:      opts.weights,
				TargetR:      opts.targetR,
				Excluded:     opts.exclude,
				ConstantWM:   opts.constantWM,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(adj)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.id, "id", "", "alternative identifier echoed in the result")
	f.Float64SliceVarP(&opts.performances, "performances", "p", nil, "performances in [0, 1], one per criterion")
	f.Float64SliceVarP(&opts.weights, "weights", "w", nil, "criteria weights, max-normalized")
	f.Float64VarP(&opts.targetR, "target-r", "r", 0, "target closeness coefficient in (0, 1)")
	f.IntSliceVar(&opts.exclude, "exclude", nil, "indices of criteria that must not change")
	f.BoolVar(&opts.constantWM, "constant-wm", false, "keep the mean weighted performance unchanged")
	f.DurationVar(&opts.timeLimit, "time-limit", application.DefaultTimeLimit, "solver time limit")
	f.BoolVar(&opts.verbose, "verbose", false, "log solver progress")
	_ = cmd.MarkFlagRequired("performances")
	_ = cmd.MarkFlagRequired("weights")
	_ = cmd.MarkFlagRequired("target-r")
	return cmd
}
