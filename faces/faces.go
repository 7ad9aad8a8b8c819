package faces

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/Kagami/go-face"
)

var ErrImageReleased = errors.New("image data already released")

// Descriptor is the 128-dimensional dlib face embedding
type Descriptor [128]float32

type Face struct {
	Rectangle  image.Rectangle
	Descriptor Descriptor
}

// Detector finds faces in JPEG data and returns them with their descriptors
type Detector interface {
	Detect(jpeg []byte) ([]Face, error)
	Close()
}

type dlibDetector struct {
	mu  sync.Mutex
	rec *face.Recognizer
	cnn bool
}

// OpenDlib loads the dlib models from modelsDir
func OpenDlib(modelsDir string, cnn bool) (Detector, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, err
	}
	return &dlibDetector{rec: rec, cnn: cnn}, nil
}

func (d *dlibDetector) Detect(jpeg []byte) ([]Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rec == nil {
		return nil, ErrModelsNotReady
	}
	var (
		found []face.Face
		err   error
	)
	if d.cnn {
		found, err = d.rec.RecognizeCNN(jpeg)
	} else {
		found, err = d.rec.Recognize(jpeg)
	}
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	result := make([]Face, 0, len(found))
	for _, cur := range found {
		result = append(result, Face{
			Rectangle:  cur.Rectangle,
			Descriptor: Descriptor(cur.Descriptor),
		})
	}
	return result, nil
}

func (d *dlibDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
}

func EuclideanDistance(d1, d2 Descriptor) float64 {
	var sum float64
	for i := range d1 {
		diff := float64(d1[i] - d2[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Similarity maps the descriptor distance to [0,1], 1 being identical
func Similarity(d1, d2 Descriptor) float64 {
	return math.Max(0, math.Min(1, 1-EuclideanDistance(d1, d2)))
}
