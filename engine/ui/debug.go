package ui

import "github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"

// DebugStats is the read-only part of the debug panel.
type DebugStats struct {
	FPS            float64
	FrameTimeMS    float64
	FramesInFlight int
	ImageCount     int
	Extent         metadata.Extent
	Frames         uint64
	Recreations    uint64
	SkippedFrames  uint64
}

// DebugSettings are the values the debug panel edits in place.
type DebugSettings struct {
	FOV           float32
	LightPosition [3]float32
}

const (
	debugPanelX     = 10
	debugPanelY     = 10
	debugPanelWidth = 280

	minFOV   = 10
	maxFOV   = 120
	lightMax = 20
)

var lightAxes = [3]string{"light x", "light y", "light z"}

// DebugPanel declares the frame statistics panel and reports whether any
// setting changed, clamping included.
func (c *Context) DebugPanel(stats DebugStats, settings *DebugSettings) bool {
	before := *settings

	c.BeginPanel("Debug", debugPanelX, debugPanelY, debugPanelWidth)
	c.Labelf("%.0f fps (%.2f ms)", stats.FPS, stats.FrameTimeMS)
	c.Labelf("frames in flight: %d", stats.FramesInFlight)
	c.Labelf("images: %d at %s", stats.ImageCount, stats.Extent)
	c.Labelf("frames: %d", stats.Frames)
	c.Labelf("recreations: %d skipped: %d", stats.Recreations, stats.SkippedFrames)
	c.Slider("fov", &settings.FOV, minFOV, maxFOV)
	for i, axis := range lightAxes {
		c.Slider(axis, &settings.LightPosition[i], -lightMax, lightMax)
	}
	c.EndPanel()

	return *settings != before
}
