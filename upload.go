package folio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/storage"
)

const (
	maxUploadSize = 10 << 20 // 10MB
	cvKey         = "cv.pdf"
)

var pdfMagic = []byte("%PDF-")

type uploadResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

func (a *App) handleCVUpload(c echo.Context) error {
	file, err := c.FormFile("cv")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no cv file provided")
	}
	if file.Size > maxUploadSize {
		return echo.NewHTTPError(http.StatusBadRequest, "file too large (max 10MB)")
	}
	if !strings.Contains(file.Header.Get(echo.HeaderContentType), "pdf") {
		return echo.NewHTTPError(http.StatusBadRequest, "only PDF files are allowed")
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(src, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return echo.NewHTTPError(http.StatusBadRequest, "only PDF files are allowed")
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}

	if err := a.Files.Put(c.Request().Context(), cvKey, src, file.Size, "application/pdf"); err != nil {
		return fmt.Errorf("store cv: %w", err)
	}
	a.Logger.InfoContext(c.Request().Context(), "cv uploaded", "size", file.Size)

	return c.JSON(http.StatusOK, uploadResponse{
		Message: "CV uploaded successfully",
		URL:     "/" + cvKey,
	})
}

func (a *App) handleCV(c echo.Context) error {
	rc, err := a.Files.Open(c.Request().Context(), cvKey)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "cv not found")
	}
	if err != nil {
		return fmt.Errorf("open cv: %w", err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="cv.pdf"`)
	return c.Stream(http.StatusOK, "application/pdf", rc)
}
