package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrEmptyImage        = errors.New("image is empty")
	ErrTooManyPixels     = errors.New("image dimensions too large")
)

// AllowedExtensions lists the upload extensions accepted by the file picker.
var AllowedExtensions = []string{"png", "jpg", "jpeg"}

const jpegQuality = 92

// MaxPixels bounds width*height before a full decode is attempted.
const MaxPixels = 40_000_000

// maxSideFactor bounds the longest side relative to maxDimension.
const maxSideFactor = 8

// Image is an uploaded picture after validation.
type Image struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Data     []byte `json:"data"`
}

// Decode validates data as a png or jpeg image. Images whose longest side exceeds
// maxDimension are downscaled and re-encoded in their own format; others keep their
// original bytes. maxDimension <= 0 disables downscaling. Headers announcing more
// than MaxPixels, or a side above 8*maxDimension, are rejected before decoding.
func Decode(filename string, data []byte, maxDimension int) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if err := checkExtension(filename); err != nil {
		return nil, err
	}

	if err := checkPixelBudget(data, maxDimension); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format != "png" && format != "jpeg" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	bounds := img.Bounds()
	out := &Image{
		Filename: filename,
		Format:   format,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Data:     data,
	}

	if maxDimension > 0 && (out.Width > maxDimension || out.Height > maxDimension) {
		scaled := downscale(img, maxDimension)
		encoded, err := encode(scaled, format)
		if err != nil {
			return nil, err
		}
		out.Data = encoded
		out.Width = scaled.Bounds().Dx()
		out.Height = scaled.Bounds().Dy()
	}
	return out, nil
}

// MimeType returns the IANA media type of the image.
func (i *Image) MimeType() string {
	return "image/" + i.Format
}

// Base64 encodes the image bytes with the standard alphabet.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL renders the image as data:image/<format>;base64,<payload>.
func (i *Image) DataURL() string {
	return "data:" + i.MimeType() + ";base64," + i.Base64()
}

// ParseDataURL reverses DataURL.
func ParseDataURL(url string) (format string, data []byte, err error) {
	const prefix = "data:image/"
	if !strings.HasPrefix(url, prefix) {
		return "", nil, fmt.Errorf("not an image data url")
	}
	rest := strings.TrimPrefix(url, prefix)
	format, payload, ok := strings.Cut(rest, ";base64,")
	if !ok || format == "" {
		return "", nil, fmt.Errorf("malformed image data url")
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return format, data, nil
}

func checkPixelBudget(data []byte, maxDimension int) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooManyPixels, cfg.Width, cfg.Height, MaxPixels)
	}
	if maxDimension > 0 && max(cfg.Width, cfg.Height) > maxSideFactor*maxDimension {
		return fmt.Errorf("%w: %dx%d exceeds %d px per side", ErrTooManyPixels, cfg.Width, cfg.Height, maxSideFactor*maxDimension)
	}
	return nil
}

func checkExtension(filename string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return nil
	}
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
}

func downscale(img image.Image, maxDimension int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w >= h {
		h = max(1, h*maxDimension/w)
		w = maxDimension
	} else {
		w = max(1, w*maxDimension/h)
		h = maxDimension
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
