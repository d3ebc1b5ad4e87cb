package photo

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"

	"quizbooth/internal/services"
)

const (
	// blankVarianceFloor is the minimum luminance variance (0..255 scale)
	// below which a photo is treated as blank or unusable.
	blankVarianceFloor = 8.0
)

func sniffFormat(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpeg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	default:
		return ""
	}
}

// Validate decodes an upload and enforces the pre-submission contract: a
// recognized format, the byte budget, a minimum usable dimension, and a
// basic quality guard against near-flat images.
func (n *Normalizer) Validate(data []byte) (image.Image, error) {
	format := sniffFormat(data)
	switch format {
	case "jpeg", "png":
	case "webp":
		return nil, services.Wrap(services.ErrValidation, "photo", "validate",
			"WebP images are not supported here. Please upload a JPG or PNG.", nil)
	default:
		return nil, services.Wrap(services.ErrValidation, "photo", "validate",
			"Unsupported image format. Please upload a JPG or PNG.", nil)
	}
	if int64(len(data)) > n.opts.MaxBytes {
		return nil, services.Wrap(services.ErrPayloadTooLarge, "photo", "validate",
			"Image is too large. Maximum size is 10MB.", nil)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "photo", "decode", "Invalid image file.", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() < minUsableDimension || bounds.Dy() < minUsableDimension {
		return nil, services.Wrap(services.ErrValidation, "photo", "validate",
			"Image is too small to use. Please try another photo.", nil)
	}

	if luminanceVariance(img) < blankVarianceFloor {
		return nil, services.Wrap(services.ErrValidation, "photo", "validate",
			"Image quality is too low. Please try another photo.", nil)
	}

	return img, nil
}

// minUsableDimension rejects sources too small to upscale meaningfully.
const minUsableDimension = 64

// luminanceVariance samples the image's grayscale variance on the 0..255
// scale. Sampling a bounded grid keeps the guard cheap for large sources.
func luminanceVariance(img image.Image) float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	stepX, stepY := 1, 1
	const maxSamplesPerAxis = 256
	if width > maxSamplesPerAxis {
		stepX = width / maxSamplesPerAxis
	}
	if height > maxSamplesPerAxis {
		stepY = height / maxSamplesPerAxis
	}

	var sum, sumSquares float64
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma on the 0..255 scale.
			luma := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
			sum += luma
			sumSquares += luma * luma
			count++
		}
	}
	if count == 0 {
		return 0
	}
	mean := sum / float64(count)
	return sumSquares/float64(count) - mean*mean
}
