package tabletop

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// TextureLoader resolves a texture source path to a GPU image. The engine
// wraps whatever loader it is given in a scene-scoped cache.
type TextureLoader interface {
	Load(path string) (*ebiten.Image, error)
}

// FileTextureLoader loads textures from the local filesystem.
type FileTextureLoader struct{}

// Load decodes the image file at path into a GPU image.
func (FileTextureLoader) Load(path string) (*ebiten.Image, error) {
	img, _, err := ebitenutil.NewImageFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load texture %q: %w", path, err)
	}
	return img, nil
}

// cachingTextureLoader wraps a TextureLoader with a scene-scoped cache.
// The cache is cleared (and its images deallocated) at every scene teardown,
// so no two scenes' textures coexist on the GPU.
type cachingTextureLoader struct {
	base  TextureLoader
	cache map[string]*ebiten.Image
}

func newCachingTextureLoader(base TextureLoader) *cachingTextureLoader {
	return &cachingTextureLoader{
		base:  base,
		cache: make(map[string]*ebiten.Image),
	}
}

// Load returns the cached image for path, delegating to the base loader on
// a miss.
func (l *cachingTextureLoader) Load(path string) (*ebiten.Image, error) {
	if img, ok := l.cache[path]; ok {
		return img, nil
	}
	img, err := l.base.Load(path)
	if err != nil {
		return nil, err
	}
	l.cache[path] = img
	return img, nil
}

// clearSceneCache releases every cached scene-scoped texture.
func (l *cachingTextureLoader) clearSceneCache() {
	for path, img := range l.cache {
		if img != nil {
			img.Deallocate()
		}
		delete(l.cache, path)
	}
}

// loadSceneTextures loads every required texture for a scene, aborting on
// the first failure. Successfully loaded textures stay cached so a retried
// draw does not reload them.
func (l *cachingTextureLoader) loadSceneTextures(paths []string) (map[string]*ebiten.Image, error) {
	loaded := make(map[string]*ebiten.Image, len(paths))
	for _, path := range paths {
		img, err := l.Load(path)
		if err != nil {
			return nil, err
		}
		loaded[path] = img
	}
	return loaded, nil
}
