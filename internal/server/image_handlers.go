package server

import (
	"fmt"
	"io"

	"vistagram/internal/models"
	"vistagram/internal/service"

	"github.com/gofiber/fiber/v2"
)

// readImageUpload reads the multipart "image" field and runs it through the
// image processor. A request without the field yields a nil image and no
// error, so the post service reports the missing image with the other field checks.
func (s *Server) readImageUpload(c *fiber.Ctx) (*service.ProcessedImage, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, nil
	}
	if limit := s.images.MaxUploadSizeBytes(); file.Size > limit {
		return nil, models.NewValidationError(
			fmt.Sprintf("File too large. Maximum size allowed is %dMB", limit/(1024*1024)))
	}

	src, err := file.Open()
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}

	return s.images.Process(c.UserContext(), service.UploadImageInput{
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
	})
}
