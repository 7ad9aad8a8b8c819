package cmd

import (
	"fmt"
	"humanfinder/config"
	"humanfinder/db"
	"humanfinder/models"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the demo persons",
	Long:  `Insert the seven demo reports. Reports that already exist are left alone.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(config.MYSQL_DSN, config.SQLITE_FILE)
		if err != nil {
			return err
		}
		repo := models.NewPersonRepository(conn)
		if err = repo.Migrate(); err != nil {
			return err
		}
		added, err := repo.Seed(cmd.Context(), models.DemoPersons())
		if err != nil {
			return err
		}
		fmt.Printf("Added %d demo persons\n", added)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
