package metadata

type FontGlyph struct {
	Codepoint int32
	X         uint16
	Y         uint16
	Width     uint16
	Height    uint16
	XOffset   int16
	YOffset   int16
	XAdvance  int16
	PageID    uint8
}

type FontKerning struct {
	Codepoint0 int32
	Codepoint1 int32
	Amount     int16
}

/**
 * @brief A bitmap font ready for the overlay: metrics, glyphs and the
 * decoded atlas of page 0.
 */
type FontData struct {
	Face       string
	Size       uint32
	LineHeight int32
	Baseline   int32
	AtlasSizeX int32
	AtlasSizeY int32
	Glyphs     map[int32]FontGlyph
	Kernings   map[[2]int32]int16
	Atlas      *ImageResourceData
}

// Glyph returns the glyph for codepoint, falling back to '?'.
func (f *FontData) Glyph(codepoint int32) (FontGlyph, bool) {
	if g, ok := f.Glyphs[codepoint]; ok {
		return g, true
	}
	g, ok := f.Glyphs['?']
	return g, ok
}

func (f *FontData) Kerning(a, b int32) int16 {
	return f.Kernings[[2]int32{a, b}]
}
