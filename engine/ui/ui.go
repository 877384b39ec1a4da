// Package ui is a small immediate-mode toolkit for the debug overlay. Widgets
// are declared every frame between Begin and End; End returns the draw data
// the overlay pass consumes.
package ui

import (
	"fmt"

	"github.com/spaghettifunk/anima-viewer/engine/math"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

// Input is the pointer state sampled once per frame.
type Input struct {
	MouseX, MouseY float32
	Down           bool
}

type rect struct {
	x, y, w, h float32
}

func (r rect) contains(x, y float32) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// Solid quads carry a negative u so the fragment shader skips the atlas.
var solidUV = [2]float32{-1, -1}

var (
	colorPanel  = [4]float32{0.08, 0.08, 0.10, 0.85}
	colorTitle  = [4]float32{0.20, 0.35, 0.60, 1}
	colorText   = [4]float32{0.92, 0.92, 0.92, 1}
	colorTrack  = [4]float32{0.25, 0.25, 0.28, 1}
	colorFill   = [4]float32{0.35, 0.55, 0.85, 1}
	colorHot    = [4]float32{0.45, 0.65, 0.95, 1}
	colorBoxOff = [4]float32{0.25, 0.25, 0.28, 1}
)

const (
	padding       = 6
	rowGap        = 4
	fallbackWidth = 7
	fallbackLine  = 14
)

type Context struct {
	font  *metadata.FontData
	scale float32

	input      Input
	prevDown   bool
	hot        string
	active     string
	wantsMouse bool

	panel   rect
	cursor  float32
	inPanel bool

	draw metadata.UIDrawData
}

// NewContext draws text with font. A nil font still lays widgets out but
// draws no glyphs.
func NewContext(font *metadata.FontData, scale float32) *Context {
	if scale <= 0 {
		scale = 1
	}
	return &Context{font: font, scale: scale}
}

func (c *Context) pressed() bool  { return c.input.Down && !c.prevDown }
func (c *Context) released() bool { return !c.input.Down && c.prevDown }

// Begin starts a frame for a display of the given size in pixels.
func (c *Context) Begin(displayWidth, displayHeight float32, input Input) {
	c.prevDown = c.input.Down
	c.input = input
	c.hot = ""
	c.wantsMouse = c.active != "" && input.Down
	c.draw = metadata.UIDrawData{DisplaySize: [2]float32{displayWidth, displayHeight}}
}

// End finishes the frame. The returned data is valid until the next Begin.
func (c *Context) End() *metadata.UIDrawData {
	if c.inPanel {
		c.endPanel()
	}
	if c.released() {
		c.active = ""
	}
	return &c.draw
}

// WantsMouse reports whether the pointer is over or captured by a widget,
// in which case camera controls should ignore it.
func (c *Context) WantsMouse() bool {
	return c.wantsMouse
}

func (c *Context) lineHeight() float32 {
	if c.font == nil || c.font.LineHeight == 0 {
		return fallbackLine * c.scale
	}
	return float32(c.font.LineHeight) * c.scale
}

// TextWidth measures s in pixels including kerning.
func (c *Context) TextWidth(s string) float32 {
	if c.font == nil {
		return float32(len([]rune(s))) * fallbackWidth * c.scale
	}
	var w float32
	prev := int32(-1)
	for _, r := range s {
		g, ok := c.font.Glyph(r)
		if !ok {
			continue
		}
		if prev >= 0 {
			w += float32(c.font.Kerning(prev, r)) * c.scale
		}
		w += float32(g.XAdvance) * c.scale
		prev = r
	}
	return w
}

func (c *Context) quad(r rect, uv0, uv1 [2]float32, color [4]float32) {
	base := uint32(len(c.draw.Vertices))
	c.draw.Vertices = append(c.draw.Vertices,
		metadata.UIVertex{Position: [2]float32{r.x, r.y}, UV: uv0, Color: color},
		metadata.UIVertex{Position: [2]float32{r.x + r.w, r.y}, UV: [2]float32{uv1[0], uv0[1]}, Color: color},
		metadata.UIVertex{Position: [2]float32{r.x + r.w, r.y + r.h}, UV: uv1, Color: color},
		metadata.UIVertex{Position: [2]float32{r.x, r.y + r.h}, UV: [2]float32{uv0[0], uv1[1]}, Color: color},
	)
	c.draw.Indices = append(c.draw.Indices, base, base+1, base+2, base, base+2, base+3)
}

func (c *Context) solid(r rect, color [4]float32) {
	c.quad(r, solidUV, solidUV, color)
}

func (c *Context) text(x, y float32, s string, color [4]float32) {
	if c.font == nil || c.font.AtlasSizeX == 0 || c.font.AtlasSizeY == 0 {
		return
	}
	aw, ah := float32(c.font.AtlasSizeX), float32(c.font.AtlasSizeY)
	prev := int32(-1)
	for _, r := range s {
		g, ok := c.font.Glyph(r)
		if !ok {
			continue
		}
		if prev >= 0 {
			x += float32(c.font.Kerning(prev, r)) * c.scale
		}
		if g.Width > 0 && g.Height > 0 {
			c.quad(rect{
				x: x + float32(g.XOffset)*c.scale,
				y: y + float32(g.YOffset)*c.scale,
				w: float32(g.Width) * c.scale,
				h: float32(g.Height) * c.scale,
			},
				[2]float32{float32(g.X) / aw, float32(g.Y) / ah},
				[2]float32{float32(g.X+g.Width) / aw, float32(g.Y+g.Height) / ah},
				color)
		}
		x += float32(g.XAdvance) * c.scale
		prev = r
	}
}

// BeginPanel opens a titled column of widgets at (x, y) with a fixed width.
// Its height grows with the widgets declared before EndPanel.
func (c *Context) BeginPanel(title string, x, y, width float32) {
	if c.inPanel {
		c.endPanel()
	}
	c.inPanel = true
	c.panel = rect{x: x, y: y, w: width}
	c.draw.Commands = append(c.draw.Commands, metadata.UIDrawCommand{IndexOffset: uint32(len(c.draw.Indices))})

	// Background is patched to the final height in endPanel.
	c.solid(rect{x: x, y: y, w: width}, colorPanel)
	titleHeight := c.lineHeight() + 2*padding
	c.solid(rect{x: x, y: y, w: width, h: titleHeight}, colorTitle)
	c.text(x+padding, y+padding, title, colorText)
	c.cursor = y + titleHeight + padding
}

func (c *Context) EndPanel() {
	if c.inPanel {
		c.endPanel()
	}
}

func (c *Context) endPanel() {
	c.inPanel = false
	c.panel.h = c.cursor - c.panel.y
	cmd := &c.draw.Commands[len(c.draw.Commands)-1]

	// The first quad of the panel is its background.
	bg := c.draw.Vertices[c.draw.Indices[cmd.IndexOffset]:]
	bg[2].Position[1] = c.panel.y + c.panel.h
	bg[3].Position[1] = c.panel.y + c.panel.h

	cmd.IndexCount = uint32(len(c.draw.Indices)) - cmd.IndexOffset
	cmd.Clip = [4]int32{int32(c.panel.x), int32(c.panel.y), int32(c.panel.w + 0.5), int32(c.panel.h + 0.5)}
	if c.panel.contains(c.input.MouseX, c.input.MouseY) {
		c.wantsMouse = true
	}
}

func (c *Context) row() rect {
	h := c.lineHeight()
	r := rect{x: c.panel.x + padding, y: c.cursor, w: c.panel.w - 2*padding, h: h}
	c.cursor += h + rowGap
	return r
}

// Label draws one line of text.
func (c *Context) Label(text string) {
	r := c.row()
	c.text(r.x, r.y, text, colorText)
}

// Labelf is Label with formatting.
func (c *Context) Labelf(format string, args ...interface{}) {
	c.Label(fmt.Sprintf(format, args...))
}

// interact updates hot and active state for a widget and reports whether it
// is being dragged or was just clicked.
func (c *Context) interact(id string, r rect) (held, clicked bool) {
	over := r.contains(c.input.MouseX, c.input.MouseY)
	if over {
		c.hot = id
	}
	if over && c.pressed() && c.active == "" {
		c.active = id
		clicked = true
	}
	held = c.active == id && c.input.Down
	return held, clicked
}

// Slider edits v within [lo, hi] by dragging. It reports whether v changed.
func (c *Context) Slider(label string, v *float32, lo, hi float32) bool {
	c.Labelf("%s: %.2f", label, *v)
	r := c.row()
	track := rect{x: r.x, y: r.y + r.h/3, w: r.w, h: r.h / 3}
	held, _ := c.interact("slider:"+label, r)

	changed := false
	if held && r.w > 0 {
		t := math.Clamp((c.input.MouseX-r.x)/r.w, 0, 1)
		next := lo + t*(hi-lo)
		if next != *v {
			*v = next
			changed = true
		}
	}
	*v = math.Clamp(*v, lo, hi)

	c.solid(track, colorTrack)
	t := float32(0)
	if hi > lo {
		t = (*v - lo) / (hi - lo)
	}
	fill := colorFill
	if c.hot == "slider:"+label || held {
		fill = colorHot
	}
	c.solid(rect{x: track.x, y: track.y, w: track.w * t, h: track.h}, fill)
	return changed
}

// Checkbox toggles v on click. It reports whether v changed.
func (c *Context) Checkbox(label string, v *bool) bool {
	r := c.row()
	box := rect{x: r.x, y: r.y, w: r.h, h: r.h}
	_, clicked := c.interact("checkbox:"+label, r)
	if clicked {
		*v = !*v
	}

	c.solid(box, colorBoxOff)
	if *v {
		inset := r.h / 4
		c.solid(rect{x: box.x + inset, y: box.y + inset, w: box.w - 2*inset, h: box.h - 2*inset}, colorFill)
	}
	c.text(box.x+box.w+padding, r.y, label, colorText)
	return clicked
}
