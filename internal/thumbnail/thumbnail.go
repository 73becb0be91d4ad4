// Package thumbnail turns clipboard PNGs into the small JPEG data URIs the
// history stores, and turns them back into PNG for copying.
package thumbnail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

const (
	// MaxSide bounds the longest edge of a thumbnail in pixels.
	MaxSide = 60
	// Quality is the JPEG quality used for thumbnails.
	Quality = 50

	jpegPrefix = "data:image/jpeg;base64,"
)

// ErrNotDataURI is returned by Decode for anything not shaped like
// data:<mime>;base64,<payload>.
var ErrNotDataURI = errors.New("thumbnail: not a base64 data URI")

// Size returns the thumbnail dimensions for a w×h source: the longest side is
// clamped to limit with the aspect ratio kept. Sources that already fit are left
// alone. Fractional results are truncated, with a floor of one pixel.
func Size(w, h, limit int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	fw, fh := float64(w), float64(h)
	aspect := fw / fh
	if w > h {
		if w > limit {
			fw = float64(limit)
			fh = fw / aspect
		}
	} else if h > limit {
		fh = float64(limit)
		fw = fh * aspect
	}
	return clampPx(fw), clampPx(fh)
}

func clampPx(f float64) int {
	if n := int(f); n > 0 {
		return n
	}
	return 1
}

// Encode decodes a PNG (or any registered format), downscales it and returns
// a data:image/jpeg;base64 URI. Encoding the same input twice gives the same
// URI, which is what lets clients dedup images by content.
func Encode(src []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("thumbnail: decode: %w", err)
	}

	b := img.Bounds()
	w, h := Size(b.Dx(), b.Dy(), MaxSide)
	if w == 0 {
		return "", errors.New("thumbnail: empty image")
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: Quality}); err != nil {
		return "", fmt.Errorf("thumbnail: encode: %w", err)
	}
	return jpegPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode parses a base64 data URI and decodes the image inside it.
func Decode(uri string) (image.Image, string, error) {
	mime, payload, err := split(uri)
	if err != nil {
		return nil, "", err
	}
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("thumbnail: decode %s: %w", mime, err)
	}
	return img, mime, nil
}

// ToPNG converts a data URI into PNG bytes suitable for the system clipboard.
func ToPNG(uri string) ([]byte, error) {
	img, _, err := Decode(uri)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("thumbnail: png encode: %w", err)
	}
	return buf.Bytes(), nil
}

func split(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	payload, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNotDataURI, err)
	}
	return mime, payload, nil
}
