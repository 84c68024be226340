package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/rank"
)

var scanFlags struct {
	keyword  string
	placeID  string
	name     string
	lat      float64
	lng      float64
	radiusKm float64
	gridSize int
}

// scanCmd runs a one-off grid scan from the command line without touching
// the store. Useful for validating provider credentials and grid settings.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a diagnostic geo-grid scan (no persistence, no billing)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scan"); err != nil {
			return err
		}
		if scanFlags.keyword == "" {
			return eris.New("--keyword is required")
		}
		if scanFlags.placeID == "" && scanFlags.name == "" {
			return eris.New("--place-id or --name is required")
		}

		provider, err := initProvider()
		if err != nil {
			return err
		}

		scanner := rank.NewScanner(provider, cfg.Scan)
		result, err := scanner.Run(cmd.Context(), rank.ScanRequest{
			Keyword:   scanFlags.keyword,
			Target:    rank.Target{PlaceID: scanFlags.placeID, Name: scanFlags.name},
			CenterLat: scanFlags.lat,
			CenterLng: scanFlags.lng,
			RadiusKm:  scanFlags.radiusKm,
			GridSize:  scanFlags.gridSize,
		})
		if err != nil {
			return err
		}

		zap.L().Info("scan complete",
			zap.Int("points", len(result.Points)),
			zap.Float64("average_rank", result.AverageRank),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(result), "encode result")
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanFlags.keyword, "keyword", "", "search term")
	scanCmd.Flags().StringVar(&scanFlags.placeID, "place-id", "", "target Google place ID")
	scanCmd.Flags().StringVar(&scanFlags.name, "name", "", "target business name (fallback match)")
	scanCmd.Flags().Float64Var(&scanFlags.lat, "lat", 0, "grid center latitude")
	scanCmd.Flags().Float64Var(&scanFlags.lng, "lng", 0, "grid center longitude")
	scanCmd.Flags().Float64Var(&scanFlags.radiusKm, "radius", 5, "grid radius in km")
	scanCmd.Flags().IntVar(&scanFlags.gridSize, "grid-size", 5, "grid size (NxN, odd, max 15)")
	rootCmd.AddCommand(scanCmd)
}
