package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spaghettifunk/anima-viewer/engine/assets/loaders"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/spirv"
)

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

/**
 * @brief Resolves asset files to loaders and remembers what was loaded.
 * Paths are used as given; relative paths resolve against the working
 * directory.
 */
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex
}

func NewAssetManager() *AssetManager {
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[metadata.ResourceType]Loader),
	}
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(metadata.ResourceTypeScene, &loaders.GLTFLoader{})
	am.registerLoader(metadata.ResourceTypeBitmapFont, &loaders.BitmapFontLoader{})
	return am
}

func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

// LoadAsset picks the loader from the file extension.
func (am *AssetManager) LoadAsset(path string, params interface{}) (*metadata.Resource, error) {
	assetType := DetermineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return nil, fmt.Errorf("%w: unknown asset type for %q", core.ErrAssetLoad, path)
	}

	am.mutex.RLock()
	loader, ok := am.loaders[assetType]
	am.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no loader registered for %s", core.ErrAssetLoad, assetType)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
	}

	resource, err := loader.Load(path, assetType, params)
	if err != nil {
		core.LogError("Failed to load %s %q: %v", assetType, path, err)
		return nil, err
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
	am.mutex.Unlock()
	core.LogDebug("Loaded %s %q (%d bytes).", assetType, path, resource.DataSize)
	return resource, nil
}

func (am *AssetManager) UnloadAsset(resource *metadata.Resource) error {
	if resource == nil {
		return nil
	}
	am.mutex.Lock()
	loader, ok := am.loaders[resource.Type]
	delete(am.assets, resource.FullPath)
	am.mutex.Unlock()
	if !ok {
		return nil
	}
	return loader.Unload(resource)
}

// Loaded reports what was last loaded from path.
func (am *AssetManager) Loaded(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[path]
	return info, ok
}

// ReadShader loads name from dir as validated SPIR-V.
func (am *AssetManager) ReadShader(dir, name string) ([]byte, error) {
	resource, err := am.LoadAsset(filepath.Join(dir, name), nil)
	if err != nil {
		return nil, err
	}
	return resource.Data.([]byte), nil
}

// ShaderPair names the vertex and fragment stages of one pipeline.
type ShaderPair struct {
	Vertex   string
	Fragment string
}

// CheckShaders reads every pair from dir and reflects it the way a pipeline
// rebuild would. A nil result means a rebuild will not fail on the bytecode.
func (am *AssetManager) CheckShaders(dir string, pairs ...ShaderPair) error {
	for _, pair := range pairs {
		var modules []*spirv.Module
		for _, name := range []string{pair.Vertex, pair.Fragment} {
			code, err := am.ReadShader(dir, name)
			if err != nil {
				return err
			}
			module, err := spirv.Reflect(code)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", core.ErrAssetLoad, name, err)
			}
			modules = append(modules, module)
		}
		if _, err := spirv.Merge(modules...); err != nil {
			return fmt.Errorf("%w: %s and %s: %w", core.ErrAssetLoad, pair.Vertex, pair.Fragment, err)
		}
	}
	return nil
}

func DetermineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return metadata.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".webp":
		return metadata.ResourceTypeImage
	case ".gltf", ".glb":
		return metadata.ResourceTypeScene
	case ".fnt":
		return metadata.ResourceTypeBitmapFont
	default:
		return metadata.ResourceTypeNone
	}
}
