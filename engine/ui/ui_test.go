package ui

import (
	"testing"

	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

func testFont() *metadata.FontData {
	glyph := func(r rune, x uint16) metadata.FontGlyph {
		return metadata.FontGlyph{Codepoint: r, X: x, Width: 6, Height: 10, XAdvance: 7}
	}
	return &metadata.FontData{
		LineHeight: 12,
		AtlasSizeX: 64,
		AtlasSizeY: 64,
		Glyphs: map[int32]metadata.FontGlyph{
			'A': glyph('A', 0),
			'V': glyph('V', 8),
			'?': glyph('?', 16),
			' ': {Codepoint: ' ', XAdvance: 4},
		},
		Kernings: map[[2]int32]int16{{'A', 'V'}: -2},
	}
}

func TestTextWidthAppliesKerning(t *testing.T) {
	c := NewContext(testFont(), 1)
	if got := c.TextWidth("AV"); got != 12 {
		t.Errorf("TextWidth(AV) = %v, want 12", got)
	}
	if got := c.TextWidth("A A"); got != 18 {
		t.Errorf("TextWidth(A A) = %v, want 18", got)
	}
	// Unknown runes fall back to '?'.
	if got := c.TextWidth("Z"); got != 7 {
		t.Errorf("TextWidth(Z) = %v, want 7", got)
	}
}

func TestPanelDrawDataShape(t *testing.T) {
	c := NewContext(testFont(), 1)
	c.Begin(800, 600, Input{})
	c.BeginPanel("AV", 10, 10, 200)
	c.Label("A")
	light := float32(0.5)
	c.Slider("V", &light, 0, 1)
	on := true
	c.Checkbox("A", &on)
	c.EndPanel()
	data := c.End()

	if data.DisplaySize != [2]float32{800, 600} {
		t.Errorf("display size = %v", data.DisplaySize)
	}
	if len(data.Indices)%3 != 0 || len(data.Indices) == 0 {
		t.Fatalf("index count %d", len(data.Indices))
	}
	if len(data.Commands) != 1 {
		t.Fatalf("got %d commands, want 1", len(data.Commands))
	}
	cmd := data.Commands[0]
	if cmd.IndexOffset != 0 || cmd.IndexCount != uint32(len(data.Indices)) {
		t.Errorf("command covers %d+%d of %d indices", cmd.IndexOffset, cmd.IndexCount, len(data.Indices))
	}
	if cmd.Clip[0] != 10 || cmd.Clip[1] != 10 || cmd.Clip[2] != 200 || cmd.Clip[3] <= 0 {
		t.Errorf("clip = %v", cmd.Clip)
	}
	for _, idx := range data.Indices {
		if int(idx) >= len(data.Vertices) {
			t.Fatalf("index %d past %d vertices", idx, len(data.Vertices))
		}
	}
	// Background spans the final panel height.
	if bottom := data.Vertices[2].Position[1]; bottom != float32(10+cmd.Clip[3]) {
		t.Errorf("background bottom = %v, clip height %d", bottom, cmd.Clip[3])
	}
}

// sliderFrame draws one frame holding a single slider over [10, 20].
func sliderFrame(c *Context, v *float32, in Input) bool {
	c.Begin(400, 300, in)
	c.BeginPanel("P", 0, 0, 112)
	changed := c.Slider("s", v, 10, 20)
	c.End()
	return changed
}

func TestSliderDragStaysInRange(t *testing.T) {
	c := NewContext(nil, 1)
	v := float32(12)

	// Layout: title row 14+12, gap 6, label row 14+4, slider row starts at y=50.
	const rowY = 55
	sliderFrame(c, &v, Input{MouseX: 6, MouseY: rowY})
	if !sliderFrame(c, &v, Input{MouseX: 56, MouseY: rowY, Down: true}) {
		t.Fatal("press on the slider should move the value")
	}
	if v != 15 {
		t.Errorf("press at the middle: v = %v, want 15", v)
	}
	if !c.WantsMouse() {
		t.Error("UI should capture the mouse while dragging")
	}

	// Dragging far outside still clamps to the range.
	sliderFrame(c, &v, Input{MouseX: 1000, MouseY: 280, Down: true})
	if v != 20 {
		t.Errorf("drag past the end: v = %v, want 20", v)
	}
	sliderFrame(c, &v, Input{MouseX: -50, MouseY: 280, Down: true})
	if v != 10 {
		t.Errorf("drag before the start: v = %v, want 10", v)
	}

	sliderFrame(c, &v, Input{MouseX: 300, MouseY: 280})
	if c.WantsMouse() {
		t.Error("released pointer outside the panel should not be captured")
	}
	if sliderFrame(c, &v, Input{MouseX: 300, MouseY: 280, Down: true}) {
		t.Error("press outside the slider changed the value")
	}
}

func TestCheckboxTogglesOncePerClick(t *testing.T) {
	c := NewContext(nil, 1)
	on := false
	frame := func(in Input) {
		c.Begin(400, 300, in)
		c.BeginPanel("P", 0, 0, 100)
		c.Checkbox("grid", &on)
		c.End()
	}
	// Title 26 + gap 6: the checkbox row spans y 32..46.
	frame(Input{MouseX: 10, MouseY: 38})
	frame(Input{MouseX: 10, MouseY: 38, Down: true})
	frame(Input{MouseX: 10, MouseY: 38, Down: true})
	if !on {
		t.Fatal("click should toggle on")
	}
	frame(Input{MouseX: 10, MouseY: 38})
	frame(Input{MouseX: 10, MouseY: 38, Down: true})
	if on {
		t.Error("second click should toggle off")
	}
}
