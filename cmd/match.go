package cmd

import (
	"fmt"
	"humanfinder/matching"
	"os"

	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match <person-id | --photo file>",
	Short: "Run face matching for a person or a photo",
	Long: `Compare a stored person against every report of the opposite status,
or a photo against all reports, and print the ranked matches.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().String("photo", "", "Photo file to search with instead of a stored person")
}

func runMatch(cmd *cobra.Command, args []string) error {
	photo, _ := cmd.Flags().GetString("photo")
	if (len(args) == 0) == (photo == "") {
		return fmt.Errorf("either a person ID or --photo is required")
	}
	s, err := newServices()
	if err != nil {
		return err
	}
	defer s.models.Close()

	req := matching.Request{}
	if photo != "" {
		f, err := os.Open(photo)
		if err != nil {
			return err
		}
		defer f.Close()
		if req.Upload, err = s.images.Read(photo, f); err != nil {
			return err
		}
		defer req.Upload.Release()
	} else {
		req.PersonID = args[0]
	}

	result, err := s.matcher.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", result.Alert.Title, result.Alert.Description)
	for i, p := range result.Matches {
		fmt.Printf("%2d. %-36s  %-7s  %-30s  %.2f\n", i+1, p.ID, p.Status, p.Name, *p.MatchScore)
	}
	return nil
}
