package push

import (
	"fmt"
	"humanfinder/models"
	"math"
)

const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Alert is the user-visible toast for a matching run
type Alert struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

func percent(score float64) int {
	return int(math.Round(score * 100))
}

func MatchAlert(missing, found *models.Person, score float64) Alert {
	return Alert{
		Title:       "Potential Match Found!",
		Description: fmt.Sprintf("%s (Missing) may match with %s (Found) - %d%% similarity", missing.Name, found.Name, percent(score)),
		Variant:     VariantDefault,
	}
}

func SentAlert(missing, found *models.Person) Alert {
	return Alert{
		Title:       "Notifications Sent",
		Description: fmt.Sprintf("Reporters for both %s and %s have been notified of this potential match.", missing.Name, found.Name),
		Variant:     VariantDefault,
	}
}

func NoMatchAlert(subject *models.Person) Alert {
	return Alert{
		Title:       "No Matches Found",
		Description: fmt.Sprintf("No potential matches found for %s.", subject.Name),
		Variant:     VariantDestructive,
	}
}
