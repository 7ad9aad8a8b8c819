package faces

import (
	"context"
	"errors"
	"fmt"
	"humanfinder/config"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type ModelState int

const (
	ModelsIdle ModelState = iota
	ModelsLoading
	ModelsReady
)

func (s ModelState) String() string {
	switch s {
	case ModelsLoading:
		return "loading"
	case ModelsReady:
		return "ready"
	}
	return "idle"
}

var (
	ErrModelsLoading  = errors.New("face models are still loading, try again shortly")
	ErrModelsNotReady = errors.New("face models are not loaded")
)

// RequiredModelFiles are the dlib weights go-face expects in the models dir
var RequiredModelFiles = []string{
	"shape_predictor_5_face_landmarks.dat",
	"dlib_face_recognition_resnet_model_v1.dat",
	"mmod_human_face_detector.dat",
}

const recognizerResource = "recognizer"

// ModelLoadError names the model resource that could not be loaded
type ModelLoadError struct {
	Resource string
	Err      error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("cannot load %s: %v", e.Resource, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

type OpenFunc func(dir string) (Detector, error)

// ModelLoader loads the face models once. A failed load can be retried,
// a successful one is permanent.
type ModelLoader struct {
	Dir    string
	URL    string   // Missing Files are downloaded from <URL>/<file> if set
	Files  []string // Files that must exist in Dir before Open is called
	Client *http.Client
	Open   OpenFunc

	mu       sync.Mutex
	state    ModelState
	detector Detector
	busy     chan struct{} // holds a token while a detection runs
	lastErr  error
}

func NewModelLoader() *ModelLoader {
	return &ModelLoader{
		Dir:    config.MODELS_DIR,
		URL:    config.MODELS_URL,
		Files:  RequiredModelFiles,
		Client: &http.Client{},
		Open: func(dir string) (Detector, error) {
			return OpenDlib(dir, config.FACE_DETECT_CNN)
		},
	}
}

// EnsureReady loads the models unless they are loaded already. Callers
// arriving while another load is running get ErrModelsLoading right away.
func (l *ModelLoader) EnsureReady(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case ModelsReady:
		l.mu.Unlock()
		return nil
	case ModelsLoading:
		l.mu.Unlock()
		return ErrModelsLoading
	}
	l.state = ModelsLoading
	l.mu.Unlock()

	start := time.Now()
	slog.Info("loading face models", "dir", l.Dir)
	detector, err := l.load(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastErr = err
	if err != nil {
		l.state = ModelsIdle
		slog.Error("face models", "error", err)
		return err
	}
	l.detector = detector
	l.state = ModelsReady
	slog.Info("face models loaded", "took", time.Since(start))
	return nil
}

func (l *ModelLoader) load(ctx context.Context) (Detector, error) {
	for _, name := range l.Files {
		path := filepath.Join(l.Dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if l.URL == "" {
			return nil, &ModelLoadError{Resource: name, Err: err}
		}
		if err := l.download(ctx, name, path); err != nil {
			return nil, &ModelLoadError{Resource: name, Err: err}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ModelLoadError{Resource: recognizerResource, Err: err}
	}
	detector, err := l.Open(l.Dir)
	if err != nil {
		return nil, &ModelLoadError{Resource: recognizerResource, Err: err}
	}
	return detector, nil
}

func (l *ModelLoader) download(ctx context.Context, name, path string) error {
	url := strings.TrimSuffix(l.URL, "/") + "/" + name
	slog.Info("downloading model file", "url", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}
	if err = os.MkdirAll(l.Dir, 0777); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(l.Dir, name+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err = io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (l *ModelLoader) State() ModelState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// LastError is the error of the most recent load attempt, if any
func (l *ModelLoader) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *ModelLoader) Detector() (Detector, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != ModelsReady {
		return nil, ErrModelsNotReady
	}
	return l.detector, nil
}

// detect runs one detection at a time across all callers. Waiting for the
// detector is bounded by ctx only. timeout, if set, starts once the detector
// is acquired, so queued callers do not use up their time in line.
func (l *ModelLoader) detect(ctx context.Context, data []byte, timeout time.Duration) ([]Face, error) {
	l.mu.Lock()
	if l.state != ModelsReady {
		l.mu.Unlock()
		return nil, ErrModelsNotReady
	}
	if l.busy == nil {
		l.busy = make(chan struct{}, 1)
	}
	detector, busy := l.detector, l.busy
	l.mu.Unlock()

	if data == nil {
		return nil, ErrImageReleased
	}
	select {
	case busy <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	type result struct {
		faces []Face
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		// An abandoned detection keeps the token until dlib returns
		defer func() { <-busy }()
		found, err := detector.Detect(data)
		ch <- result{found, err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case r := <-ch:
		return r.faces, r.err
	case <-expired:
		return nil, fmt.Errorf("face detection took longer than %s: %w", timeout, context.DeadlineExceeded)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *ModelLoader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.detector != nil {
		l.detector.Close()
	}
}
