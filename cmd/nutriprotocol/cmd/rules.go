package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/nutriprotocol/internal/core/db"
	"github.com/solatis/nutriprotocol/internal/fixtures"
	"github.com/solatis/nutriprotocol/internal/overrides"
	"github.com/solatis/nutriprotocol/internal/rules"
	"github.com/solatis/nutriprotocol/internal/types"
)

func newRulesCmd(env *environment) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Evaluate and validate supplement rule tables",
	}
	rulesCmd.AddCommand(
		newRulesEvaluateCmd(env),
		newRulesValidateCmd(env),
		newRulesImportCmd(env),
	)
	return rulesCmd
}

type evaluateOptions struct {
	rulesFile   string
	contextFile string
	userID      string
	protocol    string
	at          string
}

func newRulesEvaluateCmd(env *environment) *cobra.Command {
	opts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Select the rules applicable to one user",
		Long: `Evaluates a rule table for one user and prints the applicable rules,
counters and per-rule explanations as JSON.

The rule table and user come either from fixture files (--rules, --context)
or from the database (--user, optionally --protocol).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesEvaluate(cmd, env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.rulesFile, "rules", "", "rule table fixture (.yaml, .yml, .json)")
	cmd.Flags().StringVar(&opts.contextFile, "context", "", "user context fixture (.yaml, .yml, .json)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user id to load from the database")
	cmd.Flags().StringVar(&opts.protocol, "protocol", "", "protocol key (database mode; defaults to the user's protocol)")
	cmd.Flags().StringVar(&opts.at, "at", "", "evaluation date YYYY-MM-DD for age computation (default today)")
	return cmd
}

func runRulesEvaluate(cmd *cobra.Command, env *environment, opts *evaluateOptions) error {
	now, err := evaluationTime(opts.at)
	if err != nil {
		return err
	}

	var (
		table []types.SupplementRule
		ctx   types.UserRuleContext
	)

	switch {
	case opts.userID != "":
		table, ctx, err = loadFromStore(cmd.Context(), env, opts, now)
	case opts.rulesFile != "" && opts.contextFile != "":
		table, ctx, err = loadFromFixtures(opts, now)
	default:
		return fmt.Errorf("either --user or both --rules and --context are required")
	}
	if err != nil {
		return err
	}

	engine := rules.NewEngine(table,
		rules.WithLogger(env.logger),
		rules.WithMetrics(rules.NewMetrics(env.registry)),
	)
	return writeJSON(cmd.OutOrStdout(), engine.Filter(ctx))
}

func loadFromFixtures(opts *evaluateOptions, now time.Time) ([]types.SupplementRule, types.UserRuleContext, error) {
	table, err := fixtures.LoadRules(opts.rulesFile)
	if err != nil {
		return nil, types.UserRuleContext{}, err
	}
	userCtx, err := fixtures.LoadContext(opts.contextFile)
	if err != nil {
		return nil, types.UserRuleContext{}, err
	}
	return table.Active(), userCtx.Build(now, table), nil
}

func loadFromStore(ctx context.Context, env *environment, opts *evaluateOptions, now time.Time) ([]types.SupplementRule, types.UserRuleContext, error) {
	store, database, err := env.openStore(ctx)
	if err != nil {
		return nil, types.UserRuleContext{}, err
	}
	defer database.Close()

	profile, err := store.Profile(ctx, opts.userID)
	if err != nil {
		return nil, types.UserRuleContext{}, err
	}

	var protocol *types.Protocol
	if opts.protocol != "" {
		protocol, err = store.ProtocolByKey(ctx, opts.protocol)
	} else if profile.ProtocolID != "" {
		protocol, err = store.Protocol(ctx, profile.ProtocolID)
	} else {
		err = fmt.Errorf("user %s has no protocol; pass --protocol", opts.userID)
	}
	if err != nil {
		return nil, types.UserRuleContext{}, err
	}

	table, err := store.ActiveRules(ctx, protocol.ID)
	if err != nil {
		return nil, types.UserRuleContext{}, err
	}

	layers := newOverrideLayers(env, store)
	defaults, user, err := layers.Load(ctx, protocol.ID, profile.UserID)
	if err != nil {
		return nil, types.UserRuleContext{}, err
	}

	env.logger.Debug("rule table loaded",
		zap.String("user_id", profile.UserID),
		zap.String("protocol_key", protocol.Key),
		zap.Int("rules", len(table)),
		zap.Int("overrides", len(user)),
	)

	userCtx := rules.BuildContext(rules.ProfileInput{
		Profile:          profile,
		Protocol:         protocol,
		ProtocolDefaults: defaults,
		UserOverrides:    user,
	}, now)
	return table, userCtx, nil
}

// newOverrideLayers reads both override tables through caches sized by config.
func newOverrideLayers(env *environment, store *db.Store) overrides.Layers {
	cfg := overrides.Config{
		TTL:        env.cfg.Overrides.CacheTTL,
		MaxEntries: env.cfg.Overrides.MaxEntries,
	}
	return overrides.Layers{
		Defaults: overrides.New(overrides.SourceFunc(store.ProtocolDefaults), cfg, overrides.WithLogger(env.logger)),
		Users:    overrides.New(overrides.SourceFunc(store.UserOverrides), cfg, overrides.WithLogger(env.logger)),
	}
}

// evaluationTime parses --at, defaulting to now.
func evaluationTime(at string) (time.Time, error) {
	if at == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.DateOnly, at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q (expected YYYY-MM-DD): %w", at, err)
	}
	return t, nil
}

// validationEntry reports one rule's expression status.
type validationEntry struct {
	ID      types.RuleID `json:"id"`
	RuleKey string       `json:"ruleKey"`
	Valid   bool         `json:"valid"`
	Error   string       `json:"error,omitempty"`
}

type validationReport struct {
	Total   int               `json:"total"`
	Invalid int               `json:"invalid"`
	Rules   []validationEntry `json:"rules"`
}

func newRulesValidateCmd(env *environment) *cobra.Command {
	var rulesFile, protocol string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every rule expression in a table",
		Long: `Runs the expression schema check over every rule and prints a report.
Exits with an error when any rule is invalid.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var table []types.SupplementRule
			switch {
			case rulesFile != "":
				t, err := fixtures.LoadRules(rulesFile)
				if err != nil {
					return err
				}
				table = t.Rules
			case protocol != "":
				store, database, err := env.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer database.Close()

				p, err := store.ProtocolByKey(cmd.Context(), protocol)
				if err != nil {
					return err
				}
				if table, err = store.ActiveRules(cmd.Context(), p.ID); err != nil {
					return err
				}
			default:
				return fmt.Errorf("--rules or --protocol is required")
			}

			report := validateTable(table)
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Invalid > 0 {
				return fmt.Errorf("%d of %d rules have an invalid expression", report.Invalid, report.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "", "rule table fixture (.yaml, .yml, .json)")
	cmd.Flags().StringVar(&protocol, "protocol", "", "protocol key to validate from the database")
	return cmd
}

func validateTable(table []types.SupplementRule) validationReport {
	report := validationReport{Rules: make([]validationEntry, 0, len(table))}
	for _, cr := range rules.CompileAll(table) {
		entry := validationEntry{ID: cr.Rule.ID, RuleKey: cr.Rule.RuleKey, Valid: cr.Err == nil}
		if cr.Err != nil {
			entry.Error = cr.Err.Error()
			report.Invalid++
		}
		report.Rules = append(report.Rules, entry)
	}
	report.Total = len(report.Rules)
	return report
}

func newRulesImportCmd(env *environment) *cobra.Command {
	var rulesFile string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a rule table fixture into the database",
		Long: `Upserts the fixture's protocol, protocol override defaults and rules.
Invalid expressions are imported as-is and reported by evaluation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rulesFile == "" {
				return fmt.Errorf("--rules is required")
			}
			table, err := fixtures.LoadRules(rulesFile)
			if err != nil {
				return err
			}
			if table.Protocol == nil {
				return fmt.Errorf("fixture %s names no protocol", rulesFile)
			}

			ctx := cmd.Context()
			store, database, err := env.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := store.SaveProtocol(ctx, *table.Protocol); err != nil {
				return err
			}
			for key, value := range table.ProtocolDefaults {
				if err := store.SetProtocolDefault(ctx, table.Protocol.ID, key, value); err != nil {
					return err
				}
			}
			if err := store.SaveRules(ctx, table.Rules); err != nil {
				return err
			}

			env.logger.Info("rule table imported",
				zap.String("protocol_id", table.Protocol.ID),
				zap.String("protocol_key", table.Protocol.Key),
				zap.Int("rules", len(table.Rules)),
				zap.Int("protocol_defaults", len(table.ProtocolDefaults)),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "", "rule table fixture (.yaml, .yml, .json)")
	return cmd
}
