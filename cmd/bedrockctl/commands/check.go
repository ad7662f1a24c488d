package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mochi-hpc/go-bedrock/pkg/config"
	"github.com/mochi-hpc/go-bedrock/pkg/policy"
)

func newCheckCommand() *cobra.Command {
	var (
		policyPaths []string
		environment string
		warnOnly    bool
	)

	cmd := &cobra.Command{
		Use:   "check <descriptor>",
		Short: "Check a descriptor against operational policies",
		Long: `Check a descriptor against the built-in operational policies plus
any additional Rego policies loaded from --policy paths.

The descriptor is validated first; policies then evaluate the canonical
document. Violations of error or critical severity fail the check,
warnings are reported but do not.`,
		Example: `  # Check with built-in policies only
  bedrockctl check config.json

  # Check for production with extra policies
  bedrockctl check config.json --env production --policy ./policies`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			loader := config.NewLoader(log.Logger)
			tree, err := loader.Load(ctx, path)
			if err != nil {
				return fmt.Errorf("descriptor is invalid: %w", err)
			}

			engine, err := policy.NewEngine(log.Logger)
			if err != nil {
				return err
			}
			if len(policyPaths) > 0 {
				if err := engine.LoadPolicies(ctx, policyPaths); err != nil {
					return err
				}
			}

			doc, err := json.Marshal(tree)
			if err != nil {
				return fmt.Errorf("failed to serialize descriptor: %w", err)
			}
			result, err := engine.EvaluateDocument(ctx, doc, &policy.EvalContext{
				Environment: environment,
				Operation:   "check",
			})
			if err != nil {
				return err
			}

			for _, v := range result.Violations {
				evt := log.Warn()
				if v.Severity == policy.SeverityError || v.Severity == policy.SeverityCritical {
					evt = log.Error()
				}
				evt.
					Str("policy", v.Policy).
					Str("target", v.Target).
					Str("severity", string(v.Severity)).
					Msg(v.Message)
			}
			for _, w := range result.Warnings {
				log.Warn().Msg(w)
			}

			fmt.Printf("%d policies evaluated, %d violations\n",
				len(result.EvaluatedPolicies), len(result.Violations))

			if !result.Allowed && !warnOnly {
				return fmt.Errorf("descriptor violates %d blocking policies", countBlocking(result))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional policy files or directories (.rego, .json)")
	cmd.Flags().StringVar(&environment, "env", "", "target environment for policy context (e.g. production)")
	cmd.Flags().BoolVar(&warnOnly, "warn-only", false, "report violations without failing")

	return cmd
}

func countBlocking(result *policy.Result) int {
	n := 0
	for _, v := range result.Violations {
		if v.Severity == policy.SeverityError || v.Severity == policy.SeverityCritical {
			n++
		}
	}
	return n
}
