package storage

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"path"

	// Decoders registered with the image package.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/prn-tf/pantry/internal/domain"
)

// DefaultMaxImagePixels caps width*height of an accepted image.
const DefaultMaxImagePixels = 89478485

// imageFormat describes an accepted image format.
type imageFormat struct {
	ext         string
	aliases     []string
	contentType string
}

var imageFormats = map[string]imageFormat{
	"jpeg": {ext: "jpg", aliases: []string{"jpg", "jpeg", "jpe"}, contentType: "image/jpeg"},
	"png":  {ext: "png", aliases: []string{"png"}, contentType: "image/png"},
	"gif":  {ext: "gif", aliases: []string{"gif"}, contentType: "image/gif"},
	"webp": {ext: "webp", aliases: []string{"webp"}, contentType: "image/webp"},
	"bmp":  {ext: "bmp", aliases: []string{"bmp"}, contentType: "image/bmp"},
	"tiff": {ext: "tiff", aliases: []string{"tif", "tiff"}, contentType: "image/tiff"},
}

// ImageInfo is the result of a successful DetectImage.
type ImageInfo struct {
	Format      string
	ContentType string
	Width       int
	Height      int
}

// DetectImage fully decodes r and reports its format. Payloads that are not
// a decodable image in one of the accepted formats return
// domain.ErrInvalidImage.
//
// The header is read first and images declaring more than maxPixels pixels
// are rejected before any pixel buffer is allocated. A maxPixels of zero
// or less disables the check.
func DetectImage(r io.Reader, maxPixels int64) (ImageInfo, error) {
	var header bytes.Buffer
	cfg, format, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}

	f, ok := imageFormats[format]
	if !ok {
		return ImageInfo{}, fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidImage, format)
	}

	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return ImageInfo{}, fmt.Errorf("%w: %dx%d exceeds %d pixels",
			domain.ErrInvalidImage, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	return ImageInfo{
		Format:      format,
		ContentType: f.contentType,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// Ext returns the extension a stored image should carry. The uploaded
// file's extension is kept when it names the detected format, otherwise the
// format's canonical extension is used.
func (i ImageInfo) Ext(filename string) string {
	f, ok := imageFormats[i.Format]
	if !ok {
		return NormalizeExt(path.Ext(filename))
	}

	ext := NormalizeExt(path.Ext(filename))
	for _, alias := range f.aliases {
		if ext == alias {
			return ext
		}
	}
	return f.ext
}

// ContentTypeForKey guesses the MIME type of a stored key from its extension.
func ContentTypeForKey(key string) string {
	ext := NormalizeExt(path.Ext(key))
	for _, f := range imageFormats {
		for _, alias := range f.aliases {
			if ext == alias {
				return f.contentType
			}
		}
	}
	return "application/octet-stream"
}
