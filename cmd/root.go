package cmd

import (
	"fmt"
	"humanfinder/config"
	"humanfinder/logging"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile string
	closeLog   = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "humanfinder",
	Short: "Missing and found persons registry with face matching",
	Long: `HumanFinder keeps reports of missing and found persons and compares
their photos using dlib face descriptors. Potential matches raise alerts
for connected clients and push notifications for the reporters.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLog()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (environment variables take precedence)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	config.ReadEnv()
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if err := config.LoadFile(configFile); err != nil {
			return err
		}
	}
	var err error
	closeLog, err = logging.Setup(config.LOG_LEVEL, config.LOG_FILE)
	return err
}
