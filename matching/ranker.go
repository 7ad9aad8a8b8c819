package matching

import (
	"context"
	"errors"
	"fmt"
	"humanfinder/config"
	"humanfinder/faces"
	"humanfinder/images"
	"humanfinder/models"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

var ErrNoImage = errors.New("person has no photo")

type ImageLoader interface {
	Load(ctx context.Context, ref string) (*images.Bitmap, error)
}

// Subject is what the candidates are compared against
type Subject struct {
	Person models.Person
	Image  *images.Bitmap
}

// Outcome is the result of comparing the subject with one candidate
type Outcome struct {
	Person     models.Person
	Comparison faces.Comparison
	Err        error
}

type Ranker struct {
	Images      ImageLoader
	Comparator  *faces.Comparator
	Threshold   float64
	Concurrency int
}

func NewRanker(loader ImageLoader, comparator *faces.Comparator) *Ranker {
	return &Ranker{
		Images:      loader,
		Comparator:  comparator,
		Threshold:   config.MATCH_THRESHOLD,
		Concurrency: config.MATCH_CONCURRENCY,
	}
}

// CompareAll compares every candidate with the subject. The subject itself is
// skipped and its face is detected once. Outcomes keep the order of the candidates.
func (r *Ranker) CompareAll(ctx context.Context, subject Subject, candidates []models.Person) []Outcome {
	pool := make([]models.Person, 0, len(candidates))
	for _, c := range candidates {
		if subject.Person.ID != "" && c.ID == subject.Person.ID {
			continue
		}
		pool = append(pool, c)
	}
	outcomes := make([]Outcome, len(pool))
	reference, err := r.Comparator.Reference(ctx, subject.Image)
	if err != nil {
		slog.Warn("subject face", "person", subject.Person.ID, "error", err)
		for i := range pool {
			outcomes[i] = Outcome{Person: pool[i], Err: fmt.Errorf("subject face: %w", err)}
		}
		return outcomes
	}

	g := errgroup.Group{}
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}
	for i := range pool {
		g.Go(func() error {
			outcomes[i] = r.compareOne(ctx, reference, pool[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (r *Ranker) compareOne(ctx context.Context, reference faces.Reference, candidate models.Person) Outcome {
	outcome := Outcome{Person: candidate}
	switch {
	case candidate.ImageURL == "":
		outcome.Err = ErrNoImage
		return outcome
	case reference.SameImage(candidate.ImageURL):
		// Two reports sharing one photo
		outcome.Comparison = faces.Comparison{IsMatch: true, Similarity: 1}
		return outcome
	case reference.Face == nil:
		return outcome
	}
	bmp, err := r.Images.Load(ctx, candidate.ImageURL)
	if err != nil {
		outcome.Err = fmt.Errorf("candidate %s: %w", candidate.ID, err)
		slog.Warn("candidate image", "person", candidate.ID, "error", err)
		return outcome
	}
	defer bmp.Release()
	outcome.Comparison, outcome.Err = r.Comparator.CompareTo(ctx, reference, bmp, r.Threshold)
	if outcome.Err != nil {
		slog.Warn("candidate comparison", "person", candidate.ID, "error", outcome.Err)
	}
	return outcome
}

// Rank keeps the successful matches and sorts them by similarity, best first.
// Equal scores keep their candidate order.
func Rank(outcomes []Outcome) []models.Person {
	ranked := []models.Person{}
	for _, o := range outcomes {
		if o.Err != nil || !o.Comparison.IsMatch {
			continue
		}
		ranked = append(ranked, o.Person.WithScore(o.Comparison.Similarity))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].MatchScore > *ranked[j].MatchScore
	})
	return ranked
}
