package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/chronicler/config"
	"github.com/mohammad-safakhou/chronicler/internal/agent/core"
	"github.com/mohammad-safakhou/chronicler/internal/agent/telemetry"
	"github.com/mohammad-safakhou/chronicler/internal/report"
)

// researchCMD runs one pipeline pass from the terminal, no server required.
func researchCMD() *cobra.Command {
	var cfgPath string
	var showCosts bool
	var research = &cobra.Command{
		Use:   "research <query>",
		Short: "Run a research pipeline for a query and write the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			query := strings.Join(args, " ")
			tel := telemetry.NewTelemetry(cfg.Telemetry)
			renderer := report.NewMarkdownRenderer(cfg.Report)
			sink := core.LogSink{Logger: log.New(log.Writer(), "[STATUS] ", log.LstdFlags)}

			orch, err := core.NewPipeline(cfg, renderer, sink, tel)
			if err != nil {
				return err
			}

			state, err := orch.Run(context.Background(), "", query)
			if err != nil {
				return err
			}

			fmt.Printf("report written to %s\n", state.ArtifactPath)
			if state.Verification != nil && len(state.Verification.Issues) > 0 {
				fmt.Printf("fact checker flagged %d issues (corrected in the report)\n", len(state.Verification.Issues))
			}
			if showCosts {
				fmt.Print(tel.CostReport())
			}
			return nil
		},
	}
	research.Flags().BoolVar(&showCosts, "costs", false, "print model cost summary after the run")
	research.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return research
}
