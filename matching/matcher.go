package matching

import (
	"context"
	"errors"
	"fmt"
	"humanfinder/config"
	"humanfinder/faces"
	"humanfinder/images"
	"humanfinder/models"
	"humanfinder/push"
	"log/slog"
	"time"
)

type State string

const (
	StateIdle                 State = "idle"
	StateValidatingInput      State = "validating_input"
	StateCheckingFacePresence State = "checking_face_presence"
	StateComparing            State = "comparing"
	StateRanking              State = "ranking"
	StateNotifying            State = "notifying"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

var (
	ErrModelsUnavailable = errors.New("face recognition is not ready yet, please try again in a moment")
	ErrNoFace            = errors.New("no human face detected in the photo")
	ErrSubjectImage      = errors.New("cannot load the photo to match")
	ErrInvalidRequest    = errors.New("either a person or a photo is required")
	ErrPersonNotFound    = models.ErrPersonNotFound
)

// UploadName is used for the subject of photo uploads in alerts and notifications
const UploadName = "Uploaded photo"

type PersonStore interface {
	Get(ctx context.Context, id string) (models.Person, error)
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, error)
}

type AlertTrigger interface {
	Fire(ctx context.Context, subject models.Person, ranked []models.Person) push.Alert
}

// Request selects a stored person (PersonID) or carries an uploaded photo, never both
type Request struct {
	PersonID string
	Upload   *images.Bitmap
}

type Result struct {
	Subject models.Person   `json:"subject"`
	Matches []models.Person `json:"matches"`
	Alert   push.Alert      `json:"alert"`
	States  []State         `json:"states"`
}

type Matcher struct {
	Persons      PersonStore
	Images       ImageLoader
	Models       *faces.ModelLoader
	Inspector    *faces.Inspector
	Ranker       *Ranker
	Trigger      AlertTrigger
	Timeout      time.Duration // whole run
	ModelTimeout time.Duration
	OnState      func(State)
}

func NewMatcher(persons PersonStore, loader ImageLoader, modelLoader *faces.ModelLoader, trigger AlertTrigger) *Matcher {
	return &Matcher{
		Persons:      persons,
		Images:       loader,
		Models:       modelLoader,
		Inspector:    faces.NewInspector(modelLoader),
		Ranker:       NewRanker(loader, faces.NewComparator(modelLoader)),
		Trigger:      trigger,
		Timeout:      config.MATCH_TIMEOUT,
		ModelTimeout: config.MODEL_LOAD_TIMEOUT,
	}
}

type stateLog struct {
	states []State
	hook   func(State)
}

func (l *stateLog) enter(s State) {
	l.states = append(l.states, s)
	slog.Debug("matching", "state", s)
	if l.hook != nil {
		l.hook(s)
	}
}

// Run executes one matching run. On failure no partial result is returned.
func (m *Matcher) Run(ctx context.Context, req Request) (*Result, error) {
	states := &stateLog{hook: m.OnState}
	states.enter(StateIdle)
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	start := time.Now()
	result, err := m.run(ctx, req, states)
	if err != nil {
		states.enter(StateFailed)
		slog.Warn("matching run failed", "person", req.PersonID, "error", err)
		return nil, err
	}
	states.enter(StateDone)
	result.States = states.states
	slog.Info("matching run", "person", req.PersonID, "matches", len(result.Matches), "took", time.Since(start))
	return result, nil
}

func (m *Matcher) run(ctx context.Context, req Request, states *stateLog) (*Result, error) {
	states.enter(StateValidatingInput)
	if (req.PersonID == "") == (req.Upload == nil) {
		return nil, ErrInvalidRequest
	}
	subject := models.Person{Name: UploadName}
	if req.PersonID != "" {
		var err error
		if subject, err = m.Persons.Get(ctx, req.PersonID); err != nil {
			return nil, err
		}
		if subject.ImageURL == "" {
			return nil, ErrNoImage
		}
	}
	if err := m.ensureModels(ctx); err != nil {
		return nil, err
	}

	image := req.Upload
	if req.Upload == nil {
		var err error
		if image, err = m.Images.Load(ctx, subject.ImageURL); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSubjectImage, err)
		}
		defer image.Release()
	} else {
		states.enter(StateCheckingFacePresence)
		check := m.Inspector.CheckFace(ctx, image)
		switch check.Status {
		case faces.FaceFound:
		case faces.ModelUnavailable:
			return nil, fmt.Errorf("%w: %w", ErrModelsUnavailable, check.Err)
		case faces.NoFace:
			return nil, ErrNoFace
		default:
			return nil, fmt.Errorf("%w: %w", ErrNoFace, check.Err)
		}
	}

	candidates, err := m.candidates(ctx, &subject)
	if err != nil {
		return nil, err
	}

	states.enter(StateComparing)
	outcomes := m.Ranker.CompareAll(ctx, Subject{Person: subject, Image: image}, candidates)
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	states.enter(StateRanking)
	ranked := Rank(outcomes)

	states.enter(StateNotifying)
	if subject.Status == "" && len(ranked) > 0 {
		subject.Status = ranked[0].Status.Opposite()
	}
	alert := m.Trigger.Fire(ctx, subject, ranked)

	return &Result{
		Subject: subject,
		Matches: ranked,
		Alert:   alert,
	}, nil
}

func (m *Matcher) ensureModels(ctx context.Context) error {
	if m.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.ModelTimeout)
		defer cancel()
	}
	if err := m.Models.EnsureReady(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrModelsUnavailable, err)
	}
	return nil
}

// candidates returns the opposite category for a stored person (same gender
// or unknown), and every stored person for an uploaded photo
func (m *Matcher) candidates(ctx context.Context, subject *models.Person) ([]models.Person, error) {
	if subject.ID == "" {
		return m.Persons.List(ctx, models.PersonFilter{})
	}
	all, err := m.Persons.List(ctx, models.PersonFilter{
		Status:  subject.Status.Opposite(),
		Exclude: subject.ID,
	})
	if err != nil {
		return nil, err
	}
	result := make([]models.Person, 0, len(all))
	for i := range all {
		if subject.GenderCompatible(&all[i]) {
			result = append(result, all[i])
		}
	}
	return result, nil
}
