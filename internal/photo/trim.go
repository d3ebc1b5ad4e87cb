package photo

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"

	"github.com/disintegration/imaging"

	"quizbooth/internal/services"
)

// TrimAlpha crops an image to the bounding box of its non-transparent
// pixels. Character art ships with generous transparent margins that throw
// off layout math; trimming first makes placement predictable. Images with
// no alpha channel or no opaque pixels come back unchanged.
func TrimAlpha(img image.Image) image.Image {
	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX || maxY < minY {
		return img
	}
	rect := image.Rect(minX, minY, maxX+1, maxY+1)
	if rect == bounds {
		return img
	}
	return imaging.Crop(img, rect)
}

// ArtCache fetches remote art assets, trims their transparent margins, and
// keeps the result keyed by URL so repeated wizard rounds do not refetch.
type ArtCache struct {
	client *http.Client

	mu     sync.Mutex
	images map[string]image.Image
}

func NewArtCache(client *http.Client) *ArtCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &ArtCache{
		client: client,
		images: make(map[string]image.Image),
	}
}

// Fetch returns the trimmed image for url, loading it on first use.
func (c *ArtCache) Fetch(ctx context.Context, url string) (image.Image, error) {
	c.mu.Lock()
	cached, ok := c.images[url]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "photo", "fetch-art", "invalid art URL", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "photo", "fetch-art", "failed to fetch art asset", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "photo", "fetch-art",
			fmt.Sprintf("art asset returned status %d", resp.StatusCode), nil)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "photo", "fetch-art", "failed to read art asset", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "photo", "fetch-art", "art asset is not a valid image", err)
	}

	trimmed := TrimAlpha(img)
	c.mu.Lock()
	c.images[url] = trimmed
	c.mu.Unlock()
	return trimmed, nil
}
