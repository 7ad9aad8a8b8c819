package cmd

import (
	"context"
	"fmt"
	"humanfinder/config"
	"humanfinder/faces"
	"humanfinder/images"
	"os"

	"github.com/spf13/cobra"
)

var checkFaceCmd = &cobra.Command{
	Use:   "check-face <file>",
	Short: "Check whether a photo contains a human face",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		bmp, err := images.NewLoader(nil).Read(args[0], f)
		if err != nil {
			return err
		}
		defer bmp.Release()

		loader := faces.NewModelLoader()
		defer loader.Close()
		ctx, cancel := context.WithTimeout(cmd.Context(), config.MODEL_LOAD_TIMEOUT)
		defer cancel()
		if err = loader.EnsureReady(ctx); err != nil {
			return err
		}
		check := faces.NewInspector(loader).CheckFace(cmd.Context(), bmp)
		if check.Err != nil {
			return check.Err
		}
		fmt.Printf("%s: %s (%d faces, %dx%d)\n", args[0], check.Status, check.Count, bmp.Width, bmp.Height)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkFaceCmd)
}
