package faces

import (
	"context"
	"errors"
	"humanfinder/images"
	"log/slog"
)

type FaceStatus int

const (
	FaceFound FaceStatus = iota
	NoFace
	ModelUnavailable
	DetectionFailed
)

func (s FaceStatus) String() string {
	switch s {
	case FaceFound:
		return "face_found"
	case NoFace:
		return "no_face"
	case ModelUnavailable:
		return "model_unavailable"
	}
	return "detection_failed"
}

// FaceCheck is the detailed outcome of a face presence check
type FaceCheck struct {
	Status FaceStatus
	Count  int
	Err    error
}

type Inspector struct {
	Models *ModelLoader
}

func NewInspector(models *ModelLoader) *Inspector {
	return &Inspector{Models: models}
}

func (i *Inspector) CheckFace(ctx context.Context, bmp *images.Bitmap) FaceCheck {
	var data []byte
	if !bmp.Released() {
		data = bmp.Data
	}
	found, err := i.Models.detect(ctx, data, 0)
	if err != nil {
		if errors.Is(err, ErrModelsNotReady) {
			return FaceCheck{Status: ModelUnavailable, Err: err}
		}
		return FaceCheck{Status: DetectionFailed, Err: err}
	}
	if len(found) == 0 {
		return FaceCheck{Status: NoFace}
	}
	return FaceCheck{Status: FaceFound, Count: len(found)}
}

// HasHumanFace is true only when at least one face was positively detected
func (i *Inspector) HasHumanFace(ctx context.Context, bmp *images.Bitmap) bool {
	check := i.CheckFace(ctx, bmp)
	if check.Err != nil {
		slog.Warn("face check", "ref", shortRef(bmp), "status", check.Status, "error", check.Err)
	}
	return check.Status == FaceFound
}

func shortRef(bmp *images.Bitmap) string {
	if bmp == nil {
		return ""
	}
	if len(bmp.Ref) > 80 {
		return bmp.Ref[:80] + "..."
	}
	return bmp.Ref
}
