package overlay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

var ErrAssetNotFound = errors.New("asset not found")

// Loader fetches and decodes a mockup image.
type Loader interface {
	Load(ctx context.Context, path string) (image.Image, error)
}

// HTTPLoader loads assets from a static file server.
type HTTPLoader struct {
	Client *http.Client
}

func (l *HTTPLoader) Load(ctx context.Context, url string) (image.Image, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build asset request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch asset %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", url, err)
	}
	return decode(url, data)
}

// FileLoader loads assets from the local filesystem.
type FileLoader struct{}

func (FileLoader) Load(ctx context.Context, path string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
		}
		return nil, fmt.Errorf("read asset %s: %w", path, err)
	}
	return decode(path, data)
}

func decode(path string, data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{
		"path":   path,
		"format": format,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	}).Debug("Asset decoded successfully")
	return img, nil
}

// NewLoader picks an HTTP loader for http(s) static bases and a filesystem
// loader otherwise.
func NewLoader(staticBase string, timeout time.Duration) Loader {
	if strings.HasPrefix(staticBase, "http://") || strings.HasPrefix(staticBase, "https://") {
		return &HTTPLoader{Client: &http.Client{Timeout: timeout}}
	}
	return FileLoader{}
}
