package imagecodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func sampleImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 200, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, sampleImage(w, h)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, sampleImage(w, h), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestBase64RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		format   string
	}{
		{name: "png", filename: "grains.png", data: pngBytes(t, 32, 24), format: "png"},
		{name: "jpg", filename: "grains.jpg", data: jpegBytes(t, 40, 30), format: "jpeg"},
		{name: "jpeg upper case", filename: "GRAINS.JPEG", data: jpegBytes(t, 16, 16), format: "jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.filename, tt.data, 0)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if img.Format != tt.format {
				t.Fatalf("Format = %q, want %q", img.Format, tt.format)
			}

			url := img.DataURL()
			wantPrefix := "data:image/" + tt.format + ";base64,"
			if !strings.HasPrefix(url, wantPrefix) {
				t.Fatalf("DataURL() prefix = %q, want %q", url[:len(wantPrefix)], wantPrefix)
			}

			format, decoded, err := ParseDataURL(url)
			if err != nil {
				t.Fatalf("ParseDataURL() error = %v", err)
			}
			if format != tt.format {
				t.Errorf("parsed format = %q, want %q", format, tt.format)
			}
			if !bytes.Equal(decoded, tt.data) {
				t.Errorf("round trip changed payload: got %d bytes, want %d", len(decoded), len(tt.data))
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	var gifBuf bytes.Buffer
	if err := gif.Encode(&gifBuf, sampleImage(8, 8), nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		filename string
		data     []byte
		wantErr  error
	}{
		{name: "empty", filename: "a.png", data: nil, wantErr: ErrEmptyImage},
		{name: "gif extension", filename: "a.gif", data: gifBuf.Bytes(), wantErr: ErrUnsupportedFormat},
		{name: "gif content with png name", filename: "a.png", data: gifBuf.Bytes(), wantErr: ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.filename, tt.data, 0)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Decode("a.png", []byte("definitely not an image"), 0); err == nil {
		t.Fatal("Decode() of garbage returned nil error")
	}
}

// pngWithHeader encodes a 1x1 png and rewrites its IHDR to announce w x h.
func pngWithHeader(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := append([]byte(nil), pngBytes(t, 1, 1)...)
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc after 13 data bytes
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeRejectsOversizedHeaders(t *testing.T) {
	tests := []struct {
		name         string
		w, h         uint32
		maxDimension int
	}{
		{name: "pixel bomb", w: 16000, h: 16000, maxDimension: 2048},
		{name: "pixel bomb without downscale", w: 16000, h: 16000, maxDimension: 0},
		{name: "long strip", w: 20000, h: 1, maxDimension: 2048},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pngWithHeader(t, tt.w, tt.h)
			if len(data) > 1024 {
				t.Fatalf("crafted png is %d bytes", len(data))
			}
			_, err := Decode("bomb.png", data, tt.maxDimension)
			if !errors.Is(err, ErrTooManyPixels) {
				t.Fatalf("Decode() error = %v, want ErrTooManyPixels", err)
			}
		})
	}

	if _, err := Decode("strip.png", pngWithHeader(t, 20000, 1), 0); errors.Is(err, ErrTooManyPixels) {
		t.Fatal("side limit applied with downscaling disabled")
	}
}

func TestDecodeDownscales(t *testing.T) {
	original := pngBytes(t, 200, 100)

	img, err := Decode("wide.png", original, 50)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Width != 50 || img.Height != 25 {
		t.Fatalf("size = %dx%d, want 50x25", img.Width, img.Height)
	}
	if bytes.Equal(img.Data, original) {
		t.Fatal("downscaled image kept original bytes")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		t.Fatalf("re-encoded image does not decode: %v", err)
	}
	if format != "png" || cfg.Width != 50 || cfg.Height != 25 {
		t.Fatalf("re-encoded = %s %dx%d", format, cfg.Width, cfg.Height)
	}

	small, err := Decode("small.png", original, 400)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(small.Data, original) {
		t.Fatal("image within limits was re-encoded")
	}
}

func TestParseDataURLErrors(t *testing.T) {
	for _, url := range []string{
		"https://example.com/a.png",
		"data:image/png,abc",
		"data:image/;base64,AAAA",
		"data:image/png;base64,@@@",
	} {
		if _, _, err := ParseDataURL(url); err == nil {
			t.Errorf("ParseDataURL(%q) returned nil error", url)
		}
	}
}
