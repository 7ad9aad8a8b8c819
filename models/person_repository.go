package models

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrPersonNotFound = errors.New("person not found")

type PersonFilter struct {
	Status  PersonStatus
	Gender  string
	Query   string // matched against name, location and description
	Exclude string // person ID to leave out
	Limit   int
}

type PersonRepository struct {
	db *gorm.DB
}

func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

func (r *PersonRepository) Migrate() error {
	return r.db.AutoMigrate(&Person{})
}

func (r *PersonRepository) Create(ctx context.Context, p *Person) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PersonRepository) Get(ctx context.Context, id string) (Person, error) {
	p := Person{}
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, ErrPersonNotFound
	}
	return p, err
}

// List returns reports ordered by reported date (newest first), then ID.
func (r *PersonRepository) List(ctx context.Context, f PersonFilter) ([]Person, error) {
	tx := r.db.WithContext(ctx).Model(&Person{})
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if f.Gender != "" {
		tx = tx.Where("gender = ?", strings.ToLower(f.Gender))
	}
	if f.Exclude != "" {
		tx = tx.Where("id <> ?", f.Exclude)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(last_seen_location) LIKE ? OR LOWER(description) LIKE ?", like, like, like)
	}
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}
	result := []Person{}
	err := tx.Order("reported_date DESC").Order("id").Find(&result).Error
	return result, err
}
