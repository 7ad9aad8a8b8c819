package faces

import (
	"context"
	"errors"
	"fmt"
	"humanfinder/images"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	faces map[string][]Face
	errs  map[string]error
	delay time.Duration
	calls atomic.Int32
}

func (d *fakeDetector) Detect(data []byte) ([]Face, error) {
	d.calls.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if err := d.errs[string(data)]; err != nil {
		return nil, err
	}
	return d.faces[string(data)], nil
}

func (d *fakeDetector) Close() {}

// descriptor returns a descriptor at distance v from descriptor(0)
func descriptor(v float32) Descriptor {
	d := Descriptor{}
	d[0] = v
	return d
}

func readyLoader(t *testing.T, d Detector) *ModelLoader {
	t.Helper()
	l := &ModelLoader{Open: func(string) (Detector, error) { return d, nil }}
	require.NoError(t, l.EnsureReady(context.Background()))
	return l
}

func bitmap(ref, data string) *images.Bitmap {
	return &images.Bitmap{Ref: ref, Data: []byte(data)}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b Descriptor
		want float64
	}{
		{"identical", descriptor(0.3), descriptor(0.3), 1},
		{"close", descriptor(0), descriptor(0.05), 0.95},
		{"far", descriptor(0), descriptor(0.8), 0.2},
		{"clamped", descriptor(0), descriptor(2), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-6)
			assert.InDelta(t, tt.want, Similarity(tt.b, tt.a), 1e-6)
		})
	}
}

func TestInspector_CheckFace(t *testing.T) {
	detector := &fakeDetector{
		faces: map[string][]Face{
			"two": {{Descriptor: descriptor(0)}, {Descriptor: descriptor(1)}},
		},
		errs: map[string]error{"broken": errors.New("corrupt jpeg")},
	}
	inspector := NewInspector(readyLoader(t, detector))
	ctx := context.Background()

	tests := []struct {
		data   string
		status FaceStatus
		count  int
	}{
		{"two", FaceFound, 2},
		{"landscape", NoFace, 0},
		{"broken", DetectionFailed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			check := inspector.CheckFace(ctx, bitmap(tt.data, tt.data))
			assert.Equal(t, tt.status, check.Status)
			assert.Equal(t, tt.count, check.Count)
			assert.Equal(t, tt.status == FaceFound, inspector.HasHumanFace(ctx, bitmap(tt.data, tt.data)))
		})
	}

	released := bitmap("two", "two")
	released.Release()
	assert.Equal(t, DetectionFailed, inspector.CheckFace(ctx, released).Status)
	assert.False(t, inspector.HasHumanFace(ctx, released))
}

func TestInspector_ModelsNotReady(t *testing.T) {
	inspector := NewInspector(&ModelLoader{})
	check := inspector.CheckFace(context.Background(), bitmap("x", "x"))
	assert.Equal(t, ModelUnavailable, check.Status)
	assert.ErrorIs(t, check.Err, ErrModelsNotReady)
	assert.False(t, inspector.HasHumanFace(context.Background(), bitmap("x", "x")))
}

func TestComparator(t *testing.T) {
	detector := &fakeDetector{
		faces: map[string][]Face{
			"alex-missing": {{Descriptor: descriptor(0)}},
			"alex-found":   {{Descriptor: descriptor(0.05)}},
			"stranger":     {{Descriptor: descriptor(0.9)}},
			"halfway":      {{Descriptor: descriptor(0.5)}},
		},
		errs: map[string]error{"broken": errors.New("corrupt jpeg")},
	}
	c := &Comparator{Models: readyLoader(t, detector), Timeout: time.Second}
	ctx := context.Background()
	missing := bitmap("a", "alex-missing")
	found := bitmap("b", "alex-found")

	t.Run("match", func(t *testing.T) {
		res, err := c.CompareDetailed(ctx, missing, found, 0.5)
		require.NoError(t, err)
		assert.True(t, res.IsMatch)
		assert.InDelta(t, 0.95, res.Similarity, 1e-6)
	})

	t.Run("symmetric", func(t *testing.T) {
		for _, other := range []*images.Bitmap{found, bitmap("s", "stranger"), bitmap("n", "nobody")} {
			ab := c.Compare(ctx, missing, other, 0.5)
			ba := c.Compare(ctx, other, missing, 0.5)
			assert.Equal(t, ab, ba)
		}
	})

	t.Run("self", func(t *testing.T) {
		calls := detector.calls.Load()
		res := c.Compare(ctx, missing, bitmap("a", "alex-missing"), 1.0)
		assert.Equal(t, Comparison{IsMatch: true, Similarity: 1}, res)
		assert.Equal(t, calls, detector.calls.Load(), "no detection for the same image")
	})

	t.Run("no faces", func(t *testing.T) {
		res, err := c.CompareDetailed(ctx, missing, bitmap("n", "nobody"), 0.5)
		require.NoError(t, err)
		assert.Equal(t, Comparison{}, res)
	})

	t.Run("threshold is exclusive", func(t *testing.T) {
		res := c.Compare(ctx, missing, bitmap("h", "halfway"), 0.5)
		assert.InDelta(t, 0.5, res.Similarity, 1e-6)
		assert.False(t, res.IsMatch)
	})

	t.Run("detection error", func(t *testing.T) {
		_, err := c.CompareDetailed(ctx, missing, bitmap("x", "broken"), 0.5)
		assert.Error(t, err)
		assert.Equal(t, Comparison{}, c.Compare(ctx, missing, bitmap("x", "broken"), 0.5))
	})

	t.Run("models not ready", func(t *testing.T) {
		notReady := &Comparator{Models: &ModelLoader{}}
		_, err := notReady.CompareDetailed(ctx, missing, found, 0.5)
		assert.ErrorIs(t, err, ErrModelsNotReady)
	})
}

func TestComparator_Timeout(t *testing.T) {
	detector := &fakeDetector{
		faces: map[string][]Face{"slow": {{}}},
		delay: 200 * time.Millisecond,
	}
	c := &Comparator{Models: readyLoader(t, detector), Timeout: 10 * time.Millisecond}
	_, err := c.CompareDetailed(context.Background(), bitmap("a", "slow"), bitmap("b", "slow"), 0.5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestComparator_QueuedDetections(t *testing.T) {
	detector := &fakeDetector{
		faces: map[string][]Face{"face": {{Descriptor: descriptor(0)}}},
		delay: 30 * time.Millisecond,
	}
	c := &Comparator{Models: readyLoader(t, detector), Timeout: 100 * time.Millisecond}

	// 12 detections of 30ms each run one after another, well past the timeout in total
	results := make([]error, 6)
	wg := sync.WaitGroup{}
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.CompareDetailed(context.Background(), bitmap(fmt.Sprint("a", i), "face"), bitmap(fmt.Sprint("b", i), "face"), 0.5)
			if err == nil && !res.IsMatch {
				err = fmt.Errorf("no match: %+v", res)
			}
			results[i] = err
		}()
	}
	wg.Wait()
	for _, err := range results {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(12), detector.calls.Load())
}

func TestComparator_Reference(t *testing.T) {
	detector := &fakeDetector{
		faces: map[string][]Face{
			"alex-missing": {{Descriptor: descriptor(0)}},
			"alex-found":   {{Descriptor: descriptor(0.05)}},
		},
	}
	c := &Comparator{Models: readyLoader(t, detector), Timeout: time.Second}
	ctx := context.Background()

	ref, err := c.Reference(ctx, bitmap("a", "alex-missing"))
	require.NoError(t, err)
	require.NotNil(t, ref.Face)
	calls := detector.calls.Load()
	for i := 0; i < 3; i++ {
		res, err := c.CompareTo(ctx, ref, bitmap("b", "alex-found"), 0.5)
		require.NoError(t, err)
		assert.InDelta(t, 0.95, res.Similarity, 1e-6)
	}
	assert.Equal(t, calls+3, detector.calls.Load(), "reference face is not detected again")

	res, err := c.CompareTo(ctx, ref, bitmap("a", "other data"), 0.5)
	require.NoError(t, err)
	assert.Equal(t, Comparison{IsMatch: true, Similarity: 1}, res)

	noFace, err := c.Reference(ctx, bitmap("n", "nobody"))
	require.NoError(t, err)
	assert.Nil(t, noFace.Face)
	calls = detector.calls.Load()
	res, err = c.CompareTo(ctx, noFace, bitmap("b", "alex-found"), 0.5)
	require.NoError(t, err)
	assert.Equal(t, Comparison{}, res)
	assert.Equal(t, calls, detector.calls.Load())
}

func TestComparator_CancelledWhileQueued(t *testing.T) {
	detector := &fakeDetector{
		faces: map[string][]Face{"slow": {{}}},
		delay: 300 * time.Millisecond,
	}
	loader := readyLoader(t, detector)
	c := &Comparator{Models: loader, Timeout: time.Second}

	// Occupy the detector
	go c.Reference(context.Background(), bitmap("busy", "slow"))
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Reference(ctx, bitmap("queued", "slow"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), detector.calls.Load())
}
