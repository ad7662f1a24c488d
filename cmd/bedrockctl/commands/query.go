package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mochi-hpc/go-bedrock/pkg/config"
	"github.com/mochi-hpc/go-bedrock/pkg/service"
)

func newQueryCommand() *cobra.Command {
	var (
		scriptPath string
		address    string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query [descriptor] [script]",
		Short: "Run a query script against a descriptor",
		Long: `Run a Starlark query script against a descriptor document.

The script sees the canonical document as a dict named "config" and
reports its answer by assigning a global named "result". The result is
printed as JSON.

With --address the script is submitted to a running daemon's control
socket and evaluated against its live configuration instead of a file.`,
		Example: `  # Inline script: count the providers
  bedrockctl query config.json 'result = len(config["providers"])'

  # Script from a file
  bedrockctl query config.json --script pools.star

  # Query a running daemon
  bedrockctl query --address localhost:9123 --script pools.star`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path := ""
			inline := ""
			if address == "" {
				if len(args) == 0 {
					return fmt.Errorf("a descriptor file or --address is required")
				}
				path = args[0]
				if len(args) == 2 {
					inline = args[1]
				}
			} else if len(args) == 1 {
				inline = args[0]
			}

			var script string
			switch {
			case scriptPath != "":
				data, err := os.ReadFile(scriptPath)
				if err != nil {
					return fmt.Errorf("failed to read script: %w", err)
				}
				script = string(data)
			case inline != "":
				script = inline
			default:
				return fmt.Errorf("a script is required, inline or via --script")
			}

			if address != "" {
				return queryDaemon(ctx, address, script, timeout)
			}

			loader := config.NewLoader(log.Logger)
			tree, err := loader.Load(ctx, path)
			if err != nil {
				return err
			}

			evaluator := config.NewQueryEvaluator(timeout)
			result, err := evaluator.QueryTree(ctx, tree, script)
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			fmt.Println(string(result))
			return nil
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "read the query script from a file")
	cmd.Flags().StringVar(&address, "address", "", "query a running daemon's control socket instead of a file")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "script execution timeout")

	return cmd
}

func queryDaemon(ctx context.Context, address, script string, timeout time.Duration) error {
	handle, err := service.Dial(ctx, address, &service.DialConfig{
		RequestTimeout: timeout,
		Logger:         log.Logger,
	})
	if err != nil {
		return err
	}
	defer handle.Close()

	result, err := handle.QueryConfig(ctx, script)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	fmt.Println(string(result))
	return nil
}
