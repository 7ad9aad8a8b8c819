package faces

import (
	"context"
	"humanfinder/config"
	"humanfinder/images"
	"log/slog"
	"time"
)

type Comparison struct {
	IsMatch    bool    `json:"isMatch"`
	Similarity float64 `json:"similarity"`
}

// Reference is the detected face of an image compared against many others,
// so the image is only detected once
type Reference struct {
	Ref  string
	Face *Face // nil when no face was found
}

// SameImage is true when ref points to the reference image itself
func (r Reference) SameImage(ref string) bool {
	return r.Ref != "" && r.Ref == ref
}

type Comparator struct {
	Models  *ModelLoader
	Timeout time.Duration // per detection, counted once the detector is free
}

func NewComparator(models *ModelLoader) *Comparator {
	return &Comparator{
		Models:  models,
		Timeout: config.COMPARE_TIMEOUT,
	}
}

func (c *Comparator) Reference(ctx context.Context, bmp *images.Bitmap) (Reference, error) {
	ref := Reference{Ref: bmp.Ref}
	found, err := c.Models.detect(ctx, bmp.Data, c.Timeout)
	if err != nil {
		return ref, err
	}
	if len(found) > 0 {
		ref.Face = &found[0]
	}
	return ref, nil
}

// CompareTo compares the first face of dst with the reference face. No face
// on either side gives a non-match, not an error.
func (c *Comparator) CompareTo(ctx context.Context, ref Reference, dst *images.Bitmap, threshold float64) (Comparison, error) {
	if ref.SameImage(dst.Ref) {
		return Comparison{IsMatch: true, Similarity: 1}, nil
	}
	if ref.Face == nil {
		return Comparison{}, nil
	}
	found, err := c.Models.detect(ctx, dst.Data, c.Timeout)
	if err != nil {
		return Comparison{}, err
	}
	if len(found) == 0 {
		return Comparison{}, nil
	}
	similarity := Similarity(ref.Face.Descriptor, found[0].Descriptor)
	return Comparison{
		IsMatch:    similarity > threshold,
		Similarity: similarity,
	}, nil
}

// CompareDetailed compares the first face found in each image
func (c *Comparator) CompareDetailed(ctx context.Context, src, dst *images.Bitmap, threshold float64) (Comparison, error) {
	if src.Ref != "" && src.Ref == dst.Ref {
		return Comparison{IsMatch: true, Similarity: 1}, nil
	}
	ref, err := c.Reference(ctx, src)
	if err != nil {
		return Comparison{}, err
	}
	return c.CompareTo(ctx, ref, dst, threshold)
}

// Compare never fails: any error is logged and reported as a non-match
func (c *Comparator) Compare(ctx context.Context, src, dst *images.Bitmap, threshold float64) Comparison {
	result, err := c.CompareDetailed(ctx, src, dst, threshold)
	if err != nil {
		slog.Warn("face comparison failed", "src", shortRef(src), "dst", shortRef(dst), "error", err)
		return Comparison{}
	}
	return result
}
