package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mochi-hpc/go-bedrock/pkg/config"
)

func newRenderCommand() *cobra.Command {
	var (
		output string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "render <descriptor>",
		Short: "Render a descriptor to its canonical JSON form",
		Long: `Render a descriptor to the canonical JSON document the daemon
consumes. The input may be JSON, YAML or CUE; the output is always the
validated canonical form, byte-identical for identical descriptors.`,
		Example: `  # Render a CUE descriptor to stdout
  bedrockctl render service.cue

  # Render to a file, indented for review
  bedrockctl render service.yaml --pretty -o config.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			loader := config.NewLoader(log.Logger)
			tree, err := loader.Load(cmd.Context(), path)
			if err != nil {
				return err
			}

			doc, err := json.Marshal(tree)
			if err != nil {
				return fmt.Errorf("failed to serialize descriptor: %w", err)
			}
			if pretty {
				var buf bytes.Buffer
				if err := json.Indent(&buf, doc, "", "  "); err != nil {
					return fmt.Errorf("failed to indent document: %w", err)
				}
				doc = buf.Bytes()
			}
			doc = append(doc, '\n')

			if output == "" || output == "-" {
				_, err = os.Stdout.Write(doc)
				return err
			}
			if err := os.WriteFile(output, doc, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			log.Info().Str("path", output).Msg("Canonical document written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the document to a file instead of stdout")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the output for readability")

	return cmd
}
