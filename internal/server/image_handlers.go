package server

import (
	"io"
	"strings"

	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadImage handles POST /api/images. The returned image_path is what a
// message carries to reference the attachment.
func (s *Server) UploadImage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	relPath, uploadErr := s.imageService.Upload(c.UserContext(), service.UploadImageInput{
		UserID:      userID,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if uploadErr != nil {
		return respondAppError(c, uploadErr)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"image_path": relPath,
	})
}

// ServeImage handles GET /api/images/:hash/master.webp
func (s *Server) ServeImage(c *fiber.Ctx) error {
	hash := strings.TrimSpace(c.Params("hash"))
	fullPath, err := s.imageService.ResolveForServing(hash + "/master.webp")
	if err != nil {
		return respondAppError(c, err)
	}
	c.Set("Content-Type", "image/webp")
	c.Set("Cache-Control", "public, max-age=31536000, immutable")
	return c.SendFile(fullPath)
}
