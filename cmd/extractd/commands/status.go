package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geonexus/extractd/config"
	"github.com/geonexus/extractd/db"
	"github.com/geonexus/extractd/errors"
	"github.com/geonexus/extractd/logger"
	"github.com/geonexus/extractd/orchestrator"
	"github.com/geonexus/extractd/store"
)

// StatusCmd prints the stored scheduler settings and the state they imply.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the orchestrator scheduling state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		conn, err := db.Open(cfg.Database.Path, logger.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.Migrate(conn, logger.Logger); err != nil {
			return err
		}

		settings, err := orchestrator.LoadSettings(store.NewParamStore(conn), cfg.Orchestrator)
		if err != nil {
			fmt.Println("State: SCHEDULE_CONFIG_ERROR")
			return err
		}

		fmt.Printf("Mode: %s\n", settings.Mode)
		fmt.Printf("Frequency: %ds\n", settings.FrequencySeconds)
		if settings.Mode == orchestrator.ModeTimeWindows {
			ranges, err := orchestrator.MarshalTimeRanges(settings.Ranges)
			if err != nil {
				return err
			}
			fmt.Printf("Windows: %s\n", ranges)
		}
		return nil
	},
}
