package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"humanfinder/config"
	"humanfinder/storage"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const StoragePrefix = "storage:"

var (
	ErrUnsupportedRef = errors.New("unsupported image reference")
	ErrTooLarge       = errors.New("image too large")
	ErrDecode         = errors.New("cannot decode image")
	ErrNoStorage      = errors.New("no photo storage configured")
	ErrTooManyPixels  = errors.New("image dimensions too large")
)

// FetchError is returned when a remote image cannot be downloaded
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Bitmap is a decoded image normalized to JPEG. It is read-only once created
// and can be shared between comparisons until Release is called.
type Bitmap struct {
	Ref    string
	Data   []byte
	Width  int
	Height int
}

// Release drops the pixel buffer
func (b *Bitmap) Release() {
	if b != nil {
		b.Data = nil
	}
}

func (b *Bitmap) Released() bool {
	return b == nil || b.Data == nil
}

// Loader resolves image references: http(s) URLs, data: URLs and "storage:<path>" photos
type Loader struct {
	Client       *http.Client
	Storage      storage.StorageAPI
	MaxBytes     int64
	MaxPixels    int // width * height checked before the pixels are decoded
	MaxDimension uint
	FetchTimeout time.Duration
}

func NewLoader(store storage.StorageAPI) *Loader {
	return &Loader{
		Client:       NewPublicClient(),
		Storage:      store,
		MaxBytes:     int64(config.MAX_IMAGE_BYTES),
		MaxPixels:    config.MAX_IMAGE_PIXELS,
		MaxDimension: uint(config.MAX_IMAGE_DIMENSION),
		FetchTimeout: config.IMAGE_FETCH_TIMEOUT,
	}
}

// LoadExternal loads a reference supplied by a client: only http(s) and data: URLs
func (l *Loader) LoadExternal(ctx context.Context, ref string) (*Bitmap, error) {
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") && !strings.HasPrefix(ref, "data:") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRef, shorten(ref))
	}
	return l.Load(ctx, ref)
}

func (l *Loader) Load(ctx context.Context, ref string) (*Bitmap, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		data, err := l.fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		return l.Decode(ref, data)
	case strings.HasPrefix(ref, "data:"):
		data, err := decodeDataURL(ref)
		if err != nil {
			return nil, err
		}
		return l.Decode(ref, data)
	case strings.HasPrefix(ref, StoragePrefix):
		if l.Storage == nil {
			return nil, ErrNoStorage
		}
		buf := bytes.Buffer{}
		if _, err := l.Storage.Load(strings.TrimPrefix(ref, StoragePrefix), &buf); err != nil {
			return nil, fmt.Errorf("load %s: %w", ref, err)
		}
		return l.Decode(ref, buf.Bytes())
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedRef, shorten(ref))
}

// Read decodes an uploaded image, enforcing the size limit
func (l *Loader) Read(ref string, r io.Reader) (*Bitmap, error) {
	data, err := l.readLimited(r)
	if err != nil {
		return nil, err
	}
	return l.Decode(ref, data)
}

func (l *Loader) Decode(ref string, data []byte) (*Bitmap, error) {
	if l.MaxBytes > 0 && int64(len(data)) > l.MaxBytes {
		return nil, ErrTooLarge
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if l.MaxPixels > 0 && (cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > l.MaxPixels/cfg.Height) {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	size := img.Bounds().Size()
	if l.MaxDimension > 0 && (uint(size.X) > l.MaxDimension || uint(size.Y) > l.MaxDimension) {
		img = resize.Thumbnail(l.MaxDimension, l.MaxDimension, img, resize.Lanczos3)
		size = img.Bounds().Size()
	}
	var out bytes.Buffer
	if err = jpeg.Encode(&out, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return &Bitmap{
		Ref:    ref,
		Data:   out.Bytes(),
		Width:  size.X,
		Height: size.Y,
	}, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	if l.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.FetchTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}
	return l.readLimited(resp.Body)
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	if l.MaxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, l.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.MaxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

func decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: data URL must be base64 encoded", ErrUnsupportedRef)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

func shorten(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
