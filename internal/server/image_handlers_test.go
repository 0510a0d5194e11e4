package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x ^ y), A: 255}) // #nosec G115
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartUpload(t *testing.T, content []byte, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="image"; filename="photo.png"`}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestUploadAndServeImage(t *testing.T) {
	s, db := newHandlerTestServer(t)
	user := createHandlerTestUser(t, db, "img_user")

	app := newAuthedApp(user.ID)
	app.Post("/api/images", s.UploadImage)
	app.Get("/api/images/:hash/master.webp", s.ServeImage)

	body, contentType := multipartUpload(t, pngFixture(t, 64, 48), "image/png")
	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	uploaded := decodeBody(t, resp)
	imagePath, ok := uploaded["image_path"].(string)
	require.True(t, ok)
	require.True(t, strings.HasSuffix(imagePath, "/master.webp"), "got %q", imagePath)

	req = httptest.NewRequest(http.MethodGet, "/api/images/"+imagePath, nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/webp", resp.Header.Get("Content-Type"))

	served, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, served)
}

func TestUploadImageRejectsBadInput(t *testing.T) {
	s, db := newHandlerTestServer(t)
	user := createHandlerTestUser(t, db, "img_bad_user")

	app := newAuthedApp(user.ID)
	app.Post("/api/images", s.UploadImage)

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/images", strings.NewReader(""))
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "No file uploaded", decodeBody(t, resp)["error"])
	})

	t.Run("not an image", func(t *testing.T) {
		body, contentType := multipartUpload(t, []byte("plain text, not pixels"), "image/png")
		req := httptest.NewRequest(http.MethodPost, "/api/images", body)
		req.Header.Set("Content-Type", contentType)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestServeImageRejectsBadHashes(t *testing.T) {
	s, db := newHandlerTestServer(t)
	user := createHandlerTestUser(t, db, "img_hash_user")

	app := newAuthedApp(user.ID)
	app.Get("/api/images/:hash/master.webp", s.ServeImage)

	for _, hash := range []string{"notahash!", "ABCDEF", "%2e%2e"} {
		req := httptest.NewRequest(http.MethodGet, "/api/images/"+hash+"/master.webp", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.NotEqual(t, fiber.StatusOK, resp.StatusCode, "hash %q should not serve", hash)
	}
}
