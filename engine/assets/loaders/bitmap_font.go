package loaders

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fzipp/bmfont"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

type BitmapFontLoader struct{}

// Load reads an AngelCode .fnt descriptor and decodes its first page as the
// overlay atlas. Glyphs on other pages are dropped.
func (fl *BitmapFontLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	if filepath.Ext(path) != ".fnt" {
		return nil, fmt.Errorf("%w: unsupported bitmap font file %q", core.ErrAssetLoad, path)
	}
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
	}
	desc := font.Descriptor

	data := &metadata.FontData{
		Face:       desc.Info.Face,
		Size:       uint32(desc.Info.Size),
		LineHeight: int32(desc.Common.LineHeight),
		Baseline:   int32(desc.Common.Base),
		AtlasSizeX: int32(desc.Common.ScaleW),
		AtlasSizeY: int32(desc.Common.ScaleH),
		Glyphs:     make(map[int32]metadata.FontGlyph, len(desc.Chars)),
		Kernings:   make(map[[2]int32]int16, len(desc.Kerning)),
	}

	for _, g := range desc.Chars {
		if g.Page != 0 {
			continue
		}
		data.Glyphs[int32(g.ID)] = metadata.FontGlyph{
			Codepoint: int32(g.ID),
			X:         uint16(g.X),
			Y:         uint16(g.Y),
			Width:     uint16(g.Width),
			Height:    uint16(g.Height),
			XOffset:   int16(g.XOffset),
			YOffset:   int16(g.YOffset),
			XAdvance:  int16(g.XAdvance),
			PageID:    uint8(g.Page),
		}
	}
	for pair, k := range desc.Kerning {
		data.Kernings[[2]int32{int32(pair.First), int32(pair.Second)}] = int16(k.Amount)
	}

	pageFile := ""
	for _, p := range desc.Pages {
		if p.ID == 0 {
			pageFile = p.File
		}
	}
	if pageFile == "" {
		return nil, fmt.Errorf("%w: font %q has no page 0", core.ErrAssetLoad, path)
	}
	f, err := os.Open(filepath.Join(filepath.Dir(path), pageFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
	}
	defer f.Close()
	data.Atlas, err = DecodeImage(f, nil)
	if err != nil {
		return nil, fmt.Errorf("font page %s: %w", pageFile, err)
	}

	return &metadata.Resource{
		Name:     desc.Info.Face,
		FullPath: path,
		Type:     metadata.ResourceTypeBitmapFont,
		DataSize: uint64(len(data.Atlas.Pixels)),
		Data:     data,
	}, nil
}

func (fl *BitmapFontLoader) Unload(resource *metadata.Resource) error {
	if data, ok := resource.Data.(*metadata.FontData); ok {
		data.Glyphs = nil
		data.Kernings = nil
		data.Atlas = nil
	}
	resource.Data = nil
	resource.DataSize = 0
	return nil
}
