package models

import (
	"context"
	"errors"
	"time"
)

func intPtr(i int) *int {
	return &i
}

func mustDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// DemoPersons is the sample data set used by the "seed" command
func DemoPersons() []Person {
	return []Person{
		{
			ID:               "1",
			Name:             "John Doe",
			Age:              intPtr(35),
			Gender:           "male",
			LastSeenDate:     "2023-11-15",
			LastSeenLocation: "New York, NY",
			Description:      "Last seen wearing a blue jacket and jeans. Has a small scar on his right cheek.",
			ContactInfo:      "contact@example.com",
			ReportedBy:       "John's Family",
			ImageURL:         "https://images.unsplash.com/photo-1500648767791-00dcc994a43e?w=600&h=800&fit=crop",
			Status:           StatusMissing,
			ReportedDate:     mustDate("2023-11-16"),
		},
		{
			ID:               "2",
			Name:             "Jane Smith",
			Age:              intPtr(28),
			Gender:           "female",
			LastSeenDate:     "2023-12-01",
			LastSeenLocation: "Los Angeles, CA",
			Description:      "Last seen wearing a red dress and black coat.",
			ContactInfo:      "contact@example.com",
			ReportedBy:       "Jane's Friend",
			ImageURL:         "https://images.unsplash.com/photo-1544005313-94ddf0286df2?w=600&h=800&fit=crop",
			Status:           StatusMissing,
			ReportedDate:     mustDate("2023-12-02"),
		},
		{
			ID:               "3",
			Name:             "Michael Johnson",
			Age:              intPtr(42),
			Gender:           "male",
			LastSeenDate:     "2023-10-20",
			LastSeenLocation: "Chicago, IL",
			Description:      "Has a tattoo on his left arm. Last seen at downtown train station.",
			ContactInfo:      "contact@example.com",
			ImageURL:         "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=600&h=800&fit=crop",
			Status:           StatusMissing,
			ReportedDate:     mustDate("2023-10-21"),
		},
		{
			ID:               "4",
			Name:             "Unknown Male",
			Age:              intPtr(30),
			Gender:           "male",
			LastSeenDate:     "2023-12-10",
			LastSeenLocation: "Boston, MA",
			Description:      "Found near Boston Common. Medium height, brown hair. May have amnesia.",
			ContactInfo:      "boston.police@example.com",
			ReportedBy:       "Boston Police",
			ImageURL:         "https://images.unsplash.com/photo-1568602471122-7832951cc4c5?w=600&h=800&fit=crop",
			Status:           StatusFound,
			ReportedDate:     mustDate("2023-12-11"),
		},
		{
			ID:               "5",
			Name:             "Unknown Female",
			Age:              intPtr(25),
			Gender:           "female",
			LastSeenDate:     "2023-11-30",
			LastSeenLocation: "Seattle, WA",
			Description:      "Found at local shelter. No identification, speaks with foreign accent.",
			ContactInfo:      "seattle.services@example.com",
			ReportedBy:       "Seattle Shelter",
			ImageURL:         "https://images.unsplash.com/photo-1494790108377-be9c29b29330?w=600&h=800&fit=crop",
			Status:           StatusFound,
			ReportedDate:     mustDate("2023-12-01"),
		},
		{
			ID:               "6",
			Name:             "Alex Johnson",
			Age:              intPtr(32),
			Gender:           "male",
			LastSeenDate:     "2023-10-25",
			LastSeenLocation: "Chicago, IL",
			Description:      "Has a distinctive birthmark on right cheek. Last seen at train station.",
			ContactInfo:      "chicago.pd@example.com",
			ReportedBy:       "Chicago PD",
			ImageURL:         "https://images.unsplash.com/photo-1506794778202-cad84cf45f1d?w=600&h=800&fit=crop",
			Status:           StatusMissing,
			ReportedDate:     mustDate("2023-10-26"),
		},
		{
			ID:               "7",
			Name:             "Alex Johnson",
			Age:              intPtr(32),
			Gender:           "male",
			LastSeenDate:     "2023-12-12",
			LastSeenLocation: "Denver, CO",
			Description:      "Found disoriented at a local hospital. Has a distinctive birthmark on right cheek.",
			ContactInfo:      "denver.pd@example.com",
			ReportedBy:       "Denver Hospital",
			ImageURL:         "https://images.unsplash.com/photo-1506794778202-cad84cf45f1d?w=600&h=800&fit=crop",
			Status:           StatusFound,
			ReportedDate:     mustDate("2023-12-13"),
		},
	}
}

// Seed inserts the demo persons that are not stored yet and returns how many were added
func (r *PersonRepository) Seed(ctx context.Context, persons []Person) (int, error) {
	added := 0
	for i := range persons {
		_, err := r.Get(ctx, persons[i].ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrPersonNotFound) {
			return added, err
		}
		if err = r.Create(ctx, &persons[i]); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
