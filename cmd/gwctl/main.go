package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alertgate/gateway/internal/channelfilter"
	"github.com/alertgate/gateway/internal/config"
	"github.com/alertgate/gateway/internal/normalize"
	"github.com/alertgate/gateway/internal/router"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gwctl",
	Short: "Offline diagnostic CLI for the alert gateway",
}

func init() {
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newRouteCheckCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newValidateCmd loads and validates config.yaml exactly the way the
// gateway process does at startup, without ever binding a socket.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fmt.Printf("config OK: %d channel(s), %d routing rule(s)\n", len(cfg.Channels), len(cfg.Routing))
			return nil
		},
	}
}

// newRouteCheckCmd runs a sample alert payload through the normalizer,
// router and channel filter entirely offline, to let an operator check
// a routing table change before deploying it.
func newRouteCheckCmd() *cobra.Command {
	var payloadPath string

	cmd := &cobra.Command{
		Use:   "routecheck",
		Short: "Dry-run normalize+route+filter for a sample alert payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(payloadPath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", payloadPath, err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			rt, err := router.New(cfg.Routing)
			if err != nil {
				return err
			}

			result, err := normalize.Normalize(body)
			if err != nil {
				return err
			}

			type line struct {
				AlertName string   `json:"alertname"`
				Routed    []string `json:"routed_to"`
				Allowed   []string `json:"allowed"`
			}
			var lines []line
			for _, alert := range result.Alerts {
				candidates := rt.Route(alert)
				decisions := channelfilter.Apply(alert, candidates, cfg.Channels)
				lines = append(lines, line{
					AlertName: alert.Name(),
					Routed:    candidates,
					Allowed:   channelfilter.Allowed(decisions),
				})
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(lines)
		},
	}
	cmd.Flags().StringVar(&payloadPath, "payload", "", "path to a sample alert JSON payload")
	_ = cmd.MarkFlagRequired("payload")
	return cmd
}
