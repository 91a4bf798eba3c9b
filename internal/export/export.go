// Package export turns rendered canvas markup into downloadable files:
// the SVG itself, or a PNG rasterization of it.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

var (
	ErrEmptyMarkup = errors.New("nothing to export")
	ErrBadSize     = errors.New("invalid raster size")
)

// MaxRasterSide bounds PNG output in either dimension.
const MaxRasterSide = 4096

// FileName sanitizes name for use in a download and appends ext. Blank
// names become "canvas".
func FileName(name, ext string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "canvas"
	}
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
	return name + "." + ext
}

// WriteSVG writes markup unchanged.
func WriteSVG(w io.Writer, markup string) error {
	if markup == "" {
		return ErrEmptyMarkup
	}
	if _, err := io.WriteString(w, markup); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

// SaveFile writes markup to dir under a sanitized name and returns the
// path written.
func SaveFile(dir, name, markup string) (string, error) {
	if markup == "" {
		return "", ErrEmptyMarkup
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(dir, FileName(name, "svg"))
	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

// Rasterize draws markup onto a width x height RGBA image. Text is not
// rasterized and paint servers (the grid pattern) are dropped.
func Rasterize(markup string, width, height int) (*image.RGBA, error) {
	if markup == "" {
		return nil, ErrEmptyMarkup
	}
	if width <= 0 || height <= 0 || width > MaxRasterSide || height > MaxRasterSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadSize, width, height)
	}

	icon, err := oksvg.ReadIconStream(strings.NewReader(rasterSafe(markup)), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1)
	return img, nil
}

// rasterSafe rewrites paint values the rasterizer cannot resolve.
func rasterSafe(markup string) string {
	return strings.NewReplacer(
		`fill="transparent"`, `fill="none"`,
		`stroke="transparent"`, `stroke="none"`,
		`fill="url(#grid)"`, `fill="none"`,
	).Replace(markup)
}

// Thumbnail scales img so its longer side is at most maxSide, keeping the
// aspect ratio. Smaller images are returned as-is.
func Thumbnail(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}

	tw, th := maxSide, maxSide
	if w >= h {
		th = max(1, h*maxSide/w)
	} else {
		tw = max(1, w*maxSide/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// WritePNG rasterizes markup and encodes it as PNG. A positive maxSide
// scales the result down to a thumbnail.
func WritePNG(w io.Writer, markup string, width, height, maxSide int) error {
	img, err := Rasterize(markup, width, height)
	if err != nil {
		return err
	}
	if err := png.Encode(w, Thumbnail(img, maxSide)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
