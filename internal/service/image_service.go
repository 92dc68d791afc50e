package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"mime"
	"net/http"
	"strings"

	"vistagram/internal/config"
	"vistagram/internal/models"
	"vistagram/internal/observability"

	"github.com/chai2010/webp"
	"go.opentelemetry.io/otel/attribute"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 10
	DefaultImageMaxDimension    = 800
	DefaultJPEGQuality          = 70
)

// Output formats accepted by IMAGE_OUTPUT_FORMAT.
const (
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

type UploadImageInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ProcessedImage is an upload after resizing and re-encoding, ready to be
// stored on a post as a data URL.
type ProcessedImage struct {
	DataURL  string
	MimeType string
	Width    int
	Height   int
	Bytes    int
}

// ImageService validates uploads and normalizes them to a bounded size.
type ImageService struct {
	maxUploadSizeBytes int64
	maxDimension       int
	format             string
	quality            int
}

func NewImageService(cfg *config.Config) *ImageService {
	s := &ImageService{
		maxUploadSizeBytes: DefaultImageMaxUploadSizeMB * 1024 * 1024,
		maxDimension:       DefaultImageMaxDimension,
		format:             FormatJPEG,
		quality:            DefaultJPEGQuality,
	}

	if cfg != nil {
		if cfg.ImageMaxUploadSizeMB > 0 {
			s.maxUploadSizeBytes = int64(cfg.ImageMaxUploadSizeMB) * 1024 * 1024
		}
		if cfg.ImageMaxDimension > 0 {
			s.maxDimension = cfg.ImageMaxDimension
		}
		if cfg.ImageOutputFormat == FormatWebP {
			s.format = FormatWebP
		}
		if cfg.ImageJPEGQuality > 0 && cfg.ImageJPEGQuality <= 100 {
			s.quality = cfg.ImageJPEGQuality
		}
	}
	return s
}

// MaxUploadSizeBytes is the largest accepted upload.
func (s *ImageService) MaxUploadSizeBytes() int64 {
	return s.maxUploadSizeBytes
}

// Process checks that in is a decodable image, fits it inside the configured
// square without enlarging it and re-encodes it.
func (s *ImageService) Process(ctx context.Context, in UploadImageInput) (*ProcessedImage, error) {
	span, _ := observability.StartSpan(ctx, "ImageService.Process",
		attribute.Int("image.input_bytes", len(in.Content)),
	)
	defer span.End()

	if len(in.Content) == 0 {
		return nil, models.NewValidationError("Image is required")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large. Maximum size allowed is %dMB", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewValidationError("Only image files are allowed")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("Unsupported image format")
	}

	sourceMimeType := decodedFormatToMime(format)
	if provided := normalizeContentType(in.ContentType); provided != "" && provided != "application/octet-stream" {
		if !strings.HasPrefix(provided, "image/") {
			return nil, models.NewValidationError("Only image files are allowed")
		}
		if !isMatchingContentType(provided, sourceMimeType) {
			return nil, models.NewValidationError("Image content type mismatch")
		}
	}

	resized := resizeToFit(decoded, s.maxDimension, s.maxDimension)

	var (
		encoded  []byte
		mimeType string
	)
	switch s.format {
	case FormatWebP:
		encoded, err = encodeWebP(resized, s.quality)
		mimeType = "image/webp"
	default:
		encoded, err = encodeJPEG(flattenAlpha(resized), s.quality)
		mimeType = "image/jpeg"
	}
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}

	b := resized.Bounds()
	span.AddAttributes(
		attribute.Int("image.output_bytes", len(encoded)),
		attribute.String("image.mime", mimeType),
	)
	return &ProcessedImage{
		DataURL:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(encoded),
		MimeType: mimeType,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Bytes:    len(encoded),
	}, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

// flattenAlpha composites src over white; JPEG has no alpha channel.
func flattenAlpha(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
