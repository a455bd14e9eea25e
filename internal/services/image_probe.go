package services

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"textbook-reader/internal/logger"
	"textbook-reader/internal/surface"
)

// ImageProbe reads the natural pixel size of page illustrations stored
// under an assets directory. Only image headers are decoded.
type ImageProbe struct {
	root string
	log  *logger.Logger

	mu    sync.RWMutex
	cache map[string]surface.ImageInfo
}

// NewImageProbe creates a probe rooted at assetsPath
func NewImageProbe(assetsPath string, log *logger.Logger) *ImageProbe {
	return &ImageProbe{
		root:  assetsPath,
		log:   logger.OrNop(log),
		cache: make(map[string]surface.ImageInfo),
	}
}

// Root returns the assets directory
func (p *ImageProbe) Root() string { return p.root }

// resolve maps an image reference onto a file under root, refusing
// references that climb out of it
func (p *ImageProbe) resolve(ref string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(filepath.ToSlash(ref), "/"))
	if clean == "/" {
		return "", fmt.Errorf("empty image reference")
	}
	return filepath.Join(p.root, filepath.FromSlash(clean)), nil
}

// Probe returns the natural size of the image behind ref
func (p *ImageProbe) Probe(ref string) (surface.ImageInfo, error) {
	p.mu.RLock()
	info, ok := p.cache[ref]
	p.mu.RUnlock()
	if ok {
		return info, nil
	}

	path, err := p.resolve(ref)
	if err != nil {
		return surface.ImageInfo{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return surface.ImageInfo{}, fmt.Errorf("failed to open image %s: %w", ref, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return surface.ImageInfo{}, fmt.Errorf("failed to decode image header %s: %w", ref, err)
	}
	info = surface.ImageInfo{NaturalWidth: float64(cfg.Width), NaturalHeight: float64(cfg.Height)}

	p.mu.Lock()
	p.cache[ref] = info
	p.mu.Unlock()

	p.log.Debug("Probed page image", "ref", ref, "format", format, "width", cfg.Width, "height", cfg.Height)
	return info, nil
}

// ProbeAll probes refs concurrently and returns the sizes that succeeded.
// The first failure cancels the rest and is returned.
func (p *ImageProbe) ProbeAll(ctx context.Context, refs []string) (map[string]surface.ImageInfo, error) {
	results := make(map[string]surface.ImageInfo, len(refs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := p.Probe(ref)
			if err != nil {
				return err
			}
			mu.Lock()
			results[ref] = info
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
