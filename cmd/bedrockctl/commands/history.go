package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mochi-hpc/go-bedrock/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		storePath  string
		limit      int
		offset     int
		showConfig bool
	)

	cmd := &cobra.Command{
		Use:   "history [deployment-id]",
		Short: "Show recorded deployments",
		Long: `Show deployments recorded by "bedrockctl deploy --store".

Without arguments the most recent deployments are listed. With a
deployment id the full record is printed as JSON, including the exact
descriptor the daemon was started with when --config is given.`,
		Example: `  # List recent deployments
  bedrockctl history --store history.db

  # Inspect one deployment, descriptor included
  bedrockctl history 1b4e28ba-2fa1-11d2-883f-0016d3cca427 --store history.db --config`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := stores.NewSQLiteStore(stores.Config{Path: storePath})
			if err != nil {
				return err
			}
			if err := store.Init(ctx); err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				d, err := store.GetDeployment(ctx, args[0])
				if err != nil {
					return err
				}
				if !showConfig {
					d.Config = ""
				}
				out, err := json.MarshalIndent(d, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			deployments, err := store.ListDeployments(ctx, limit, offset)
			if err != nil {
				return err
			}
			if len(deployments) == 0 {
				fmt.Println("No deployments recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tADDRESS\tHOST\tPID\tSTATUS\tCREATED")
			for _, d := range deployments {
				host := d.Host
				if host == "" {
					host = "local"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					d.ID, d.Address, host, d.PID, d.Status,
					d.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "history database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of deployments to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of deployments to skip")
	cmd.Flags().BoolVar(&showConfig, "config", false, "include the recorded descriptor document")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}
