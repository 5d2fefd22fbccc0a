package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/nutriprotocol/internal/coverage"
	"github.com/solatis/nutriprotocol/internal/fixtures"
	"github.com/solatis/nutriprotocol/internal/types"
)

func newCoverageCmd(env *environment) *cobra.Command {
	coverageCmd := &cobra.Command{
		Use:   "coverage",
		Short: "Estimate therapeutic coverage of meal plans",
	}
	coverageCmd.AddCommand(newCoverageEstimateCmd(env))
	return coverageCmd
}

func newCoverageEstimateCmd(env *environment) *cobra.Command {
	var planFile, targetsFile string

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate per-day coverage, deficits and suggestions for a plan",
		Long: `Estimates coverage of a meal plan against a therapeutic targets snapshot
and prints the coverage snapshot as JSON. Without --targets the estimate is
skipped and null is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if planFile == "" {
				return fmt.Errorf("--plan is required")
			}
			plan, err := fixtures.LoadPlan(planFile)
			if err != nil {
				return err
			}

			var req types.EstimateRequest
			if targetsFile != "" {
				if req.TherapeuticTargets, err = fixtures.LoadTargets(targetsFile); err != nil {
					return err
				}
			}

			loc, err := env.cfg.Coverage.Location()
			if err != nil {
				return err
			}

			estimator := coverage.NewEstimator(
				coverage.WithLocation(loc),
				coverage.WithLogger(env.logger),
				coverage.WithMetrics(coverage.NewMetrics(env.registry)),
			)
			return writeJSON(cmd.OutOrStdout(), estimator.Estimate(*plan, req))
		},
	}

	cmd.Flags().StringVar(&planFile, "plan", "", "meal plan fixture (.yaml, .yml, .json)")
	cmd.Flags().StringVar(&targetsFile, "targets", "", "therapeutic targets snapshot fixture (.yaml, .yml, .json)")
	return cmd
}
