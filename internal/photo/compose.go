package photo

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"

	"quizbooth/internal/services"
)

// Compose builds the share graphic locally when no composite endpoint is
// configured. The generated selfie sits in the middle with the two alternate
// personas flanking it, each tucked a third of its width behind the center so
// the layout matches what the remote renderer produces.
func Compose(center, left, right image.Image) ([]byte, error) {
	if center == nil {
		return nil, services.Wrap(services.ErrValidation, "photo", "compose", "center image required", nil)
	}
	height := center.Bounds().Dy()
	if height == 0 {
		return nil, services.Wrap(services.ErrValidation, "photo", "compose", "center image is empty", nil)
	}

	left = scaleSide(left, height)
	right = scaleSide(right, height)

	cw := center.Bounds().Dx()
	lw, tuckL := sideOffsets(left)
	rw, tuckR := sideOffsets(right)

	width := (lw - tuckL) + cw + (rw - tuckR)
	canvas := imaging.New(width, height, image.Transparent)
	if left != nil {
		canvas = imaging.Overlay(canvas, left, image.Pt(0, 0), 1.0)
	}
	if right != nil {
		canvas = imaging.Overlay(canvas, right, image.Pt(width-rw, 0), 1.0)
	}
	// Center last so it sits on top of the tucked sides.
	canvas = imaging.Overlay(canvas, center, image.Pt(lw-tuckL, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, services.Wrap(services.ErrTransient, "photo", "compose", "failed to encode share graphic", err)
	}
	return buf.Bytes(), nil
}

// scaleSide trims a flanking persona and scales it to the center's height.
func scaleSide(img image.Image, height int) image.Image {
	if img == nil {
		return nil
	}
	trimmed := TrimAlpha(img)
	if trimmed.Bounds().Dy() == 0 {
		return nil
	}
	if trimmed.Bounds().Dy() == height {
		return trimmed
	}
	return imaging.Resize(trimmed, 0, height, imaging.Lanczos)
}

func sideOffsets(img image.Image) (width, tuck int) {
	if img == nil {
		return 0, 0
	}
	width = img.Bounds().Dx()
	return width, width / 3
}
