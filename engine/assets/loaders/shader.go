package loaders

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

const spirvMagic = 0x07230203

type ShaderLoader struct{}

// Load reads SPIR-V bytecode. The data is the raw little-endian words.
func (sl *ShaderLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
	}
	if err := ValidateSPIRV(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &metadata.Resource{
		Name:     path,
		FullPath: path,
		Type:     metadata.ResourceTypeShader,
		DataSize: uint64(len(data)),
		Data:     data,
	}, nil
}

func (sl *ShaderLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

func ValidateSPIRV(data []byte) error {
	if len(data) < 20 || len(data)%4 != 0 {
		return fmt.Errorf("%w: spir-v of %d bytes is not a whole module", core.ErrAssetLoad, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data); magic != spirvMagic {
		return fmt.Errorf("%w: bad spir-v magic 0x%08x", core.ErrAssetLoad, magic)
	}
	return nil
}
