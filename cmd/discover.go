// File: cmd/discover.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/grokdrive/internal/browser"
	"github.com/xkilldash9x/grokdrive/internal/browser/dom"
	"github.com/xkilldash9x/grokdrive/internal/discovery"
	"github.com/xkilldash9x/grokdrive/internal/observability"
)

// newDiscoverCmd creates the `discover` command, a selector survey against the
// live page. Run it when the automation starts missing elements: the report
// shows which patterns still match and what the markup looks like now.
func newDiscoverCmd() *cobra.Command {
	var outDir string

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Surveys which UI selector patterns match the live page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			session, err := browser.Connect(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("connect to browser: %w", err)
			}
			defer session.Close()

			resolver := dom.NewResolver(session, logger)
			probe := dom.NewProbe(resolver, logger)

			surveyor := discovery.NewSurveyor(session, probe, logger)
			findings, err := surveyor.Run(ctx)
			if err != nil {
				return fmt.Errorf("survey failed: %w", err)
			}

			path, err := surveyor.Save(findings, outDir)
			if err != nil {
				return err
			}

			for _, role := range dom.AllRoles {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %d matches\n", role, len(findings.Roles[role]))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Findings saved to: %s\n", path)
			return nil
		},
	}

	discoverCmd.Flags().StringVar(&outDir, "dir", ".", "directory for the findings report")
	return discoverCmd
}
