package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PersonStatus string

const (
	StatusMissing PersonStatus = "missing"
	StatusFound   PersonStatus = "found"

	dateLayout = "2006-01-02"
)

var (
	ErrInvalidStatus = errors.New("status must be either missing or found")
	ErrMissingName   = errors.New("name is required")
	ErrInvalidDate   = errors.New("last seen date must be YYYY-MM-DD")
	ErrInvalidAge    = errors.New("age out of range")
)

func (s PersonStatus) Valid() bool {
	return s == StatusMissing || s == StatusFound
}

// Opposite returns the category searched when matching a person of this status
func (s PersonStatus) Opposite() PersonStatus {
	if s == StatusMissing {
		return StatusFound
	}
	return StatusMissing
}

// Person is a missing or found person report. Reports are never edited after creation.
type Person struct {
	ID               string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name             string       `gorm:"type:varchar(200);not null;index" json:"name"`
	Age              *int         `json:"age,omitempty"`
	Gender           string       `gorm:"type:varchar(20)" json:"gender,omitempty"`
	LastSeenDate     string       `gorm:"type:varchar(10)" json:"lastSeenDate,omitempty"`
	LastSeenLocation string       `gorm:"type:varchar(300)" json:"lastSeenLocation,omitempty"`
	Description      string       `gorm:"type:text" json:"description,omitempty"`
	ContactInfo      string       `gorm:"type:varchar(300)" json:"contactInfo,omitempty"`
	PushToken        string       `gorm:"type:varchar(300)" json:"-"` // device of the reporter, match notifications are pushed there
	ImageURL         string       `gorm:"type:varchar(2000)" json:"imageUrl,omitempty"`
	Status           PersonStatus `gorm:"type:varchar(10);not null;index" json:"status"`
	ReportedBy       string       `gorm:"type:varchar(200)" json:"reportedBy,omitempty"`
	ReportedDate     time.Time    `gorm:"not null;index" json:"reportedDate"`
	GpsLat           *float64     `gorm:"type:double" json:"gpsLat,omitempty"`
	GpsLong          *float64     `gorm:"type:double" json:"gpsLong,omitempty"`
	TimeZone         string       `gorm:"type:varchar(64)" json:"timeZone,omitempty"`
	// Only set on search result copies
	MatchScore *float64 `gorm:"-" json:"matchScore,omitempty"`
}

// TableName overrides the table name
func (Person) TableName() string {
	return "people"
}

func (p *Person) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return ErrMissingName
	}
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	if p.Age != nil && (*p.Age < 0 || *p.Age > 130) {
		return ErrInvalidAge
	}
	if p.LastSeenDate != "" {
		if _, err := time.Parse(dateLayout, p.LastSeenDate); err != nil {
			return ErrInvalidDate
		}
	}
	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	return nil
}

func (p *Person) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ReportedDate.IsZero() {
		p.ReportedDate = time.Now().UTC()
	}
	return p.Validate()
}

// GenderCompatible is true when both genders are equal or either one is unknown
func (p *Person) GenderCompatible(other *Person) bool {
	return p.Gender == "" || other.Gender == "" || p.Gender == other.Gender
}

// WithScore returns a copy carrying the similarity score. The receiver is not modified.
func (p Person) WithScore(score float64) Person {
	p.MatchScore = &score
	return p
}
