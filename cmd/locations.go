package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/rank"
)

var locationsCountry string

// locationsCmd refreshes the cached location directory used for keyword
// location autocomplete.
var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Sync the provider location directory into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		if err := cfg.Validate("scan"); err != nil {
			return err
		}

		provider, err := initProvider()
		if err != nil {
			return err
		}
		lister, ok := provider.(rank.LocationLister)
		if !ok {
			return eris.Errorf("provider %s does not expose a location directory", provider.Name())
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		locations, err := lister.Locations(cmd.Context(), locationsCountry)
		if err != nil {
			return err
		}
		n, err := st.UpsertLocations(cmd.Context(), locations)
		if err != nil {
			return err
		}

		zap.L().Info("locations synced",
			zap.String("country", locationsCountry),
			zap.Int("fetched", len(locations)),
			zap.Int64("upserted", n),
		)
		return nil
	},
}

func init() {
	locationsCmd.Flags().StringVar(&locationsCountry, "country", "us", "ISO country code to sync")
	rootCmd.AddCommand(locationsCmd)
}
