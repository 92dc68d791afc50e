package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"vistagram/internal/config"
	"vistagram/internal/models"
	"vistagram/internal/testutil"
)

func decodeDataURL(t *testing.T, dataURL, mime string) image.Image {
	t.Helper()
	prefix := "data:" + mime + ";base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		t.Fatalf("expected %s data URL, got %.40q", mime, dataURL)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode image: %v", err)
	}
	return img
}

func TestImageServiceResizesWithinBounds(t *testing.T) {
	svc := NewImageService(&config.Config{})

	out, err := svc.Process(context.Background(), UploadImageInput{
		Filename:    "wide.png",
		ContentType: "image/png",
		Content:     testutil.TinyPNG(t, 1600, 1200),
	})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if out.Width != 800 || out.Height != 600 {
		t.Fatalf("expected 800x600, got %dx%d", out.Width, out.Height)
	}
	if out.MimeType != "image/jpeg" {
		t.Fatalf("expected jpeg output, got %s", out.MimeType)
	}

	img := decodeDataURL(t, out.DataURL, "image/jpeg")
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != 600 {
		t.Fatalf("encoded image has wrong bounds %v", b)
	}
}

func TestImageServiceDoesNotEnlarge(t *testing.T) {
	svc := NewImageService(nil)

	out, err := svc.Process(context.Background(), UploadImageInput{
		ContentType: "image/png",
		Content:     testutil.TinyPNG(t, 40, 30),
	})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if out.Width != 40 || out.Height != 30 {
		t.Fatalf("small images must keep their size, got %dx%d", out.Width, out.Height)
	}
}

func TestImageServiceFlattensTransparency(t *testing.T) {
	svc := NewImageService(nil)

	src := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, src); err != nil {
		t.Fatal(err)
	}

	out, err := svc.Process(context.Background(), UploadImageInput{ContentType: "image/png", Content: buf.Bytes()})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	img := decodeDataURL(t, out.DataURL, "image/jpeg")
	r, g, b, _ := img.At(8, 8).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Fatalf("transparent pixels should become white, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestImageServiceWebPOutput(t *testing.T) {
	svc := NewImageService(&config.Config{ImageOutputFormat: FormatWebP})

	out, err := svc.Process(context.Background(), UploadImageInput{
		ContentType: "image/png",
		Content:     testutil.TinyPNG(t, 64, 64),
	})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if out.MimeType != "image/webp" {
		t.Fatalf("expected webp output, got %s", out.MimeType)
	}
	decodeDataURL(t, out.DataURL, "image/webp")
}

func TestImageServiceRejectsInvalidUploads(t *testing.T) {
	svc := NewImageService(&config.Config{ImageMaxUploadSizeMB: 1})
	pngBytes := testutil.TinyPNG(t, 8, 8)

	cases := map[string]struct {
		in   UploadImageInput
		want string
	}{
		"empty": {
			in:   UploadImageInput{ContentType: "image/png"},
			want: "Image is required",
		},
		"too large": {
			in:   UploadImageInput{ContentType: "image/png", Content: make([]byte, 1024*1024+1)},
			want: "File too large. Maximum size allowed is 1MB",
		},
		"not an image": {
			in:   UploadImageInput{ContentType: "text/plain", Content: []byte("hello, world")},
			want: "Only image files are allowed",
		},
		"declared type is not an image": {
			in:   UploadImageInput{ContentType: "application/pdf", Content: pngBytes},
			want: "Only image files are allowed",
		},
		"content type mismatch": {
			in:   UploadImageInput{ContentType: "image/jpeg", Content: pngBytes},
			want: "Image content type mismatch",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Process(context.Background(), tc.in)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !models.IsCode(err, models.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if err.Error() != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, err.Error())
			}
		})
	}
}

func TestImageServiceAcceptsOctetStream(t *testing.T) {
	svc := NewImageService(nil)
	_, err := svc.Process(context.Background(), UploadImageInput{
		ContentType: "application/octet-stream",
		Content:     testutil.TinyPNG(t, 8, 8),
	})
	if err != nil {
		t.Fatalf("generic content type should defer to sniffing: %v", err)
	}
}

func TestImageServiceDefaults(t *testing.T) {
	svc := NewImageService(&config.Config{ImageJPEGQuality: 400})
	if svc.MaxUploadSizeBytes() != 10*1024*1024 {
		t.Fatalf("expected 10MB default, got %d", svc.MaxUploadSizeBytes())
	}
	if svc.quality != DefaultJPEGQuality {
		t.Fatalf("out of range quality should fall back, got %d", svc.quality)
	}
}
