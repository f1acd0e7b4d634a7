// Package imaging re-encodes uploaded images before they reach durable
// storage. The policy is a bandwidth/storage optimization, deterministic by
// construction:
//
//   - PNG with transparency stays PNG (resized if needed);
//   - PNG without transparency becomes JPEG (smaller);
//   - WebP passes through unmodified (Go has no WebP encoder);
//   - everything else becomes JPEG, flattened onto white if it had alpha.
//
// Images wider than the max width are downscaled preserving aspect ratio
// using Catmull-Rom resampling.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	DefaultMaxWidth = 1200
	DefaultQuality  = 85
)

// Result is a re-encoded image ready for upload.
type Result struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Optimize applies the re-encoding policy to raw image bytes. contentType is
// the client-declared MIME type; the actual bytes decide the decode path.
func Optimize(raw []byte, contentType string, maxWidth, quality int) (*Result, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	if contentType == "image/webp" {
		// Validate that it really is a WebP image, then keep the original
		// bytes: re-encoding is not possible without a WebP encoder.
		if _, err := webp.Decode(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("imaging: decode webp: %w", err)
		}
		return &Result{Data: raw, ContentType: "image/webp", Ext: "webp"}, nil
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}

	img = downscale(img, maxWidth)

	if format == "png" && !isOpaque(img) {
		var buf bytes.Buffer
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("imaging: encode png: %w", err)
		}
		return &Result{Data: buf.Bytes(), ContentType: "image/png", Ext: "png"}, nil
	}

	if !isOpaque(img) {
		img = flattenOnWhite(img)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("imaging: encode jpeg: %w", err)
	}
	return &Result{Data: buf.Bytes(), ContentType: "image/jpeg", Ext: "jpg"}, nil
}

// downscale resizes img to maxWidth if it is wider, preserving aspect ratio.
func downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxWidth {
		return img
	}
	ratio := float64(maxWidth) / float64(b.Dx())
	h := int(float64(b.Dy()) * ratio)
	if h < 1 {
		h = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// isOpaque reports whether every pixel is fully opaque.
func isOpaque(img image.Image) bool {
	if op, ok := img.(interface{ Opaque() bool }); ok {
		return op.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}

// flattenOnWhite composes a transparent image onto a white background so it
// can be encoded as JPEG without surprises.
func flattenOnWhite(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
