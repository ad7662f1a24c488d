package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mochi-hpc/go-bedrock/pkg/config"
)

func newValidateCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "validate <descriptor>",
		Short: "Validate a process descriptor",
		Long: `Validate a process descriptor file.

The descriptor is loaded through its authoring format (JSON, YAML or
CUE, detected from the extension), checked against the wire schema and
parsed into the full descriptor model. Validation covers:
  - syntax and schema conformance
  - pool references (schedulers, progress/rpc pools, instances, providers)
  - dependency expression grammar
  - name and provider-id uniqueness`,
		Example: `  # Validate the canonical JSON form
  bedrockctl validate config.json

  # Validate a CUE authoring file
  bedrockctl validate service.cue`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			loader := config.NewLoader(log.Logger)
			tree, err := loader.Load(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			argobots := tree.Margo().Argobots()
			log.Info().
				Str("path", path).
				Str("address", tree.Margo().Mercury.Address).
				Int("pools", argobots.Pools().Len()).
				Int("xstreams", argobots.Xstreams().Len()).
				Int("providers", tree.Providers().Len()).
				Int("clients", tree.Clients().Len()).
				Msg("Descriptor is valid")

			if !quiet {
				fmt.Printf("%s: valid\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the success message")

	return cmd
}
