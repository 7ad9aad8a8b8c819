package utils

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"strconv"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

const ThumbSize = 300

type ImageThumbConverted struct {
	ThumbSize int64
	NewX      int
	NewY      int
	OldX      int
	OldY      int
}

func CreateThumb(size uint, reader io.Reader, writer io.Writer) (result ImageThumbConverted, err error) {
	img, _, err := image.Decode(reader)
	if err != nil {
		return result, err
	}
	var newBuf bytes.Buffer
	newImage := resize.Thumbnail(size, size, img, resize.Lanczos3)
	if err = jpeg.Encode(&newBuf, newImage, &jpeg.Options{Quality: 90}); err != nil {
		return
	}
	imageRect := newImage.Bounds().Size()
	result.NewX = imageRect.X
	result.NewY = imageRect.Y

	imageRect = img.Bounds().Size()
	result.OldX = imageRect.X
	result.OldY = imageRect.Y

	result.ThumbSize, err = io.Copy(writer, &newBuf)
	return
}

// StringToFloat64Ptr returns nil for empty or invalid input
func StringToFloat64Ptr(in string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(in), 64)
	if err != nil {
		return nil
	}
	return &f
}

// StringToIntPtr returns nil for empty or invalid input
func StringToIntPtr(in string) *int {
	i, err := strconv.Atoi(strings.TrimSpace(in))
	if err != nil {
		return nil
	}
	return &i
}
