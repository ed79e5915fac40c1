package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jjenkins/billwatch/internal/config"
	"github.com/jjenkins/billwatch/internal/service"
)

var enrichBills []int
var enrichMode string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Regenerate AI analysis for stored bills",
	Long: `Enrich summarizes the stored text of the given bills, ignoring whether the
latest text was already summarized.

Examples:
  # Summarize the newest text version
  ./billwatch enrich --bill 1748329

  # Summarize every version in date order
  ./billwatch enrich --bill 1748329 --mode full`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if cfg.AIAPIKey == "" {
			exitf("AI_API_KEY environment variable is required")
		}
		if len(enrichBills) == 0 {
			exitf("at least one --bill is required")
		}

		mode, err := service.ParseEnrichMode(enrichMode)
		if err != nil {
			exitf("%v", err)
		}

		a, err := newApp(cfg)
		if err != nil {
			exitf("Failed to start: %v", err)
		}

		failed := enrichBillsOnce(a, mode)
		a.Close()
		if failed > 0 {
			exitf("%d of %d bills failed", failed, len(enrichBills))
		}
	},
}

// enrichBillsOnce returns the number of bills that failed
func enrichBillsOnce(a *app, mode service.EnrichMode) int {
	ctx, cancel := signalContext(a.log)
	defer cancel()

	failed := 0
	for _, billID := range enrichBills {
		analysis, err := a.enricher.Enrich(ctx, billID, mode)
		if err != nil {
			failed++
			var perr *service.ParseFailure
			if errors.As(err, &perr) {
				a.log.Error("Model output was not valid JSON", "bill_id", billID, "raw", perr.Raw)
			}
			a.log.Error("Failed to enrich bill", "bill_id", billID, "error", err)
			continue
		}
		a.log.Info("Bill enriched", "bill_id", billID, "mode", string(mode),
			"impacts", len(analysis.Impacts), "pros_cons", len(analysis.ProsCons))
	}
	return failed
}

func init() {
	rootCmd.AddCommand(enrichCmd)
	enrichCmd.Flags().IntSliceVarP(&enrichBills, "bill", "b", nil, "LegiScan bill id to enrich (repeatable)")
	enrichCmd.Flags().StringVarP(&enrichMode, "mode", "m", "latest", "Enrichment mode: latest or full")
}
