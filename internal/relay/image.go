package relay

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // GIF header support
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decode support
)

const (
	maxImageBytes = 10 * 1024 * 1024
	jpegQuality   = 85
)

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// detectContentType sniffs the image format from its magic bytes.
func detectContentType(data []byte) string {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte("\x89PNG")):
		return "image/png"
	case len(data) >= 6 && bytes.HasPrefix(data, []byte("GIF")):
		return "image/gif"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return "image/webp"
	}
	return "application/octet-stream"
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}

// downscale shrinks images wider than maxWidth, keeping the aspect ratio.
// It returns the original bytes and content type when no resize is needed.
// GIFs are left alone to keep animation; WebP has no encoder and is
// re-encoded as JPEG.
func downscale(data []byte, contentType string, maxWidth int) ([]byte, string, error) {
	if maxWidth <= 0 || contentType == "image/gif" {
		return data, contentType, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("reading image header: %w", err)
	}
	if cfg.Width <= maxWidth {
		return data, contentType, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	newHeight := int(float64(bounds.Dy()) * float64(maxWidth) / float64(bounds.Dx()))
	if newHeight < 1 {
		newHeight = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	default:
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}
