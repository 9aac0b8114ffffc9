package cli

import (
	"context"
	"log"

	"products-api/storage"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the products table and seed it if empty",
	Long:  "Runs the same idempotent initialization serve performs at startup, then exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := storage.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer storage.Close(db)

		if err := storage.NewInitializer(db).Initialize(context.Background()); err != nil {
			return err
		}

		count, err := storage.NewProductStore(db).Count(context.Background())
		if err != nil {
			return err
		}
		log.Printf("Products table ready with %d row(s)", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
