package utils

import (
	"bytes"
	"crypto/rand"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"VerifyGolang/pkg/geometry"

	"github.com/oklog/ulid/v2"
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	ValidateVideoFile(file *multipart.FileHeader) error
	DecodeImage(data []byte) (image.Image, error)
	ImageDims(data []byte) (int, int, error)
	CropJPEG(data []byte, box geometry.Rect) ([]byte, error)
	MeanLuminance(img image.Image) float64
}

type utils struct {
	maxImageSize int64
	maxVideoSize int64
	jpegQuality  int
}

func New() IUtils {
	return &utils{
		maxImageSize: 10 * 1024 * 1024,
		maxVideoSize: 100 * 1024 * 1024,
		jpegQuality:  92,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return errors.New("no file uploaded")
	}

	if file.Size > u.maxImageSize {
		return errors.New("file size exceeds limit")
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return errors.New("uploaded file is not an image")
	}

	return nil
}

func (u *utils) ValidateVideoFile(file *multipart.FileHeader) error {
	if file == nil {
		return errors.New("no file uploaded")
	}

	if file.Size > u.maxVideoSize {
		return errors.New("file size exceeds limit")
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "video/") && contentType != "application/octet-stream" {
		return errors.New("uploaded file is not a video")
	}

	return nil
}

func (u *utils) DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// ImageDims reads only the header, avoiding a full decode on the hot path.
func (u *utils) ImageDims(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// CropJPEG decodes, crops to the box clamped to the frame, and re-encodes.
// The crop is what gets relayed to the face and OCR services.
func (u *utils) CropJPEG(data []byte, box geometry.Rect) ([]byte, error) {
	img, err := u.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	x1 := clampInt(int(box.X1), b.Min.X, b.Max.X)
	y1 := clampInt(int(box.Y1), b.Min.Y, b.Max.Y)
	x2 := clampInt(int(box.X2), b.Min.X, b.Max.X)
	y2 := clampInt(int(box.Y2), b.Min.Y, b.Max.Y)
	if x2 <= x1 || y2 <= y1 {
		return nil, errors.New("empty crop region")
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}

	var cropped image.Image
	if si, ok := img.(subImager); ok {
		cropped = si.SubImage(image.Rect(x1, y1, x2, y2))
	} else {
		dst := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
		for y := y1; y < y2; y++ {
			for x := x1; x < x2; x++ {
				dst.Set(x-x1, y-y1, img.At(x, y))
			}
		}
		cropped = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: u.jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MeanLuminance averages Rec. 601 luma over the frame, sampling a pixel grid
// so large frames stay cheap.
func (u *utils) MeanLuminance(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	stepX := w / 64
	if stepX < 1 {
		stepX = 1
	}
	stepY := h / 64
	if stepY < 1 {
		stepY = 1
	}

	var sum float64
	var n int
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ReadMultipart(file multipart.File) ([]byte, error) {
	return io.ReadAll(file)
}
