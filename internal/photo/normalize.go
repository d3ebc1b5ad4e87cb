package photo

import (
	"bytes"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"quizbooth/internal/config"
	"quizbooth/internal/services"
)

// Still is a capture normalized for submission: JPEG bytes within the byte
// budget with both edge bounds satisfied.
type Still struct {
	Data    []byte
	Width   int
	Height  int
	Quality int
}

// Options bound the normalization pipeline. Zero values are not usable;
// construct via FromConfig or fill every field.
type Options struct {
	MaxBytes      int64
	MaxEdge       int
	MinEdge       int
	StartQuality  int
	QualityFloor  int
	QualityStep   int
	ShrinkDamping float64
}

// FromConfig maps the upload section onto pipeline options.
func FromConfig(cfg *config.Config) Options {
	return Options{
		MaxBytes:      cfg.Upload.MaxBytes,
		MaxEdge:       cfg.Upload.MaxEdge,
		MinEdge:       cfg.Upload.MinEdge,
		StartQuality:  cfg.Upload.StartQuality,
		QualityFloor:  cfg.Upload.QualityFloor,
		QualityStep:   cfg.Upload.QualityStep,
		ShrinkDamping: cfg.Upload.ShrinkDamping,
	}
}

// Normalizer rescales and re-encodes captures so every submission fits the
// generation service's limits.
type Normalizer struct {
	opts Options
}

func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Normalize validates raw upload bytes and produces a compliant JPEG. An
// already compliant image keeps its dimensions and is only re-encoded.
func (n *Normalizer) Normalize(data []byte) (*Still, error) {
	img, err := n.Validate(data)
	if err != nil {
		return nil, err
	}
	return n.NormalizeImage(img)
}

// NormalizeImage applies the edge bounds and byte budget to a decoded image.
func (n *Normalizer) NormalizeImage(img image.Image) (*Still, error) {
	scaled := n.rescale(img)

	quality := n.opts.StartQuality
	encoded, err := encodeJPEG(scaled, quality)
	if err != nil {
		return nil, err
	}
	for int64(len(encoded)) > n.opts.MaxBytes && quality > n.opts.QualityFloor {
		quality -= n.opts.QualityStep
		if quality < n.opts.QualityFloor {
			quality = n.opts.QualityFloor
		}
		encoded, err = encodeJPEG(scaled, quality)
		if err != nil {
			return nil, err
		}
	}

	// Quality alone was not enough. One damped geometric shrink toward the
	// byte budget, then a final reject if the floor encode still exceeds it.
	if int64(len(encoded)) > n.opts.MaxBytes {
		factor := math.Sqrt(float64(n.opts.MaxBytes)/float64(len(encoded))) * n.opts.ShrinkDamping
		bounds := scaled.Bounds()
		width := int(math.Round(float64(bounds.Dx()) * factor))
		height := int(math.Round(float64(bounds.Dy()) * factor))
		if width < 1 {
			width = 1
		}
		if height < 1 {
			height = 1
		}
		scaled = imaging.Resize(scaled, width, height, imaging.Lanczos)
		quality = n.opts.QualityFloor
		encoded, err = encodeJPEG(scaled, quality)
		if err != nil {
			return nil, err
		}
		if int64(len(encoded)) > n.opts.MaxBytes {
			return nil, services.Wrap(services.ErrPayloadTooLarge, "photo", "normalize",
				"Image could not be reduced to the upload limit. Please try another photo.", nil)
		}
	}

	bounds := scaled.Bounds()
	return &Still{
		Data:    encoded,
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		Quality: quality,
	}, nil
}

// rescale applies one combined scale factor so the smaller edge meets the
// minimum and the larger edge stays under the cap after a single resample.
// When the source already satisfies both bounds it is returned untouched.
func (n *Normalizer) rescale(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	smaller := min(width, height)
	larger := max(width, height)

	up := 1.0
	if smaller < n.opts.MinEdge {
		up = float64(n.opts.MinEdge) / float64(smaller)
	}
	down := 1.0
	if float64(larger)*up > float64(n.opts.MaxEdge) {
		down = float64(n.opts.MaxEdge) / (float64(larger) * up)
	}
	scale := up * down
	if scale == 1.0 {
		return img
	}

	newWidth := int(math.Round(float64(width) * scale))
	newHeight := int(math.Round(float64(height) * scale))
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}
	return imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, services.Wrap(services.ErrValidation, "photo", "encode", "failed to encode image", err)
	}
	return buf.Bytes(), nil
}
