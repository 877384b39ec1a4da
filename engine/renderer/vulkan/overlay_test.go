package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestClampScissor(t *testing.T) {
	extent := vk.Extent2D{Width: 800, Height: 600}
	tests := []struct {
		name string
		clip [4]int32
		want vk.Rect2D
	}{
		{"inside", [4]int32{10, 20, 100, 50}, vk.Rect2D{Offset: vk.Offset2D{X: 10, Y: 20}, Extent: vk.Extent2D{Width: 100, Height: 50}}},
		{"negative origin", [4]int32{-10, -5, 30, 30}, vk.Rect2D{Offset: vk.Offset2D{X: 0, Y: 0}, Extent: vk.Extent2D{Width: 20, Height: 25}}},
		{"past edge", [4]int32{700, 550, 300, 300}, vk.Rect2D{Offset: vk.Offset2D{X: 700, Y: 550}, Extent: vk.Extent2D{Width: 100, Height: 50}}},
		{"outside", [4]int32{900, 0, 10, 10}, vk.Rect2D{Offset: vk.Offset2D{X: 900, Y: 0}, Extent: vk.Extent2D{Width: 0, Height: 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampScissor(tt.clip, extent)
			if got.Offset != tt.want.Offset || got.Extent != tt.want.Extent {
				t.Errorf("got %+v %+v, want %+v %+v", got.Offset, got.Extent, tt.want.Offset, tt.want.Extent)
			}
		})
	}
}

func TestOverlayTransformMapsPixelsToClip(t *testing.T) {
	push := overlayTransform([2]float32{800, 600})
	clip := func(x, y float32) (float32, float32) {
		return x*push.Scale[0] + push.Translate[0], y*push.Scale[1] + push.Translate[1]
	}
	if x, y := clip(0, 0); x != -1 || y != -1 {
		t.Errorf("origin -> (%v, %v)", x, y)
	}
	if x, y := clip(800, 600); x != 1 || y != 1 {
		t.Errorf("far corner -> (%v, %v)", x, y)
	}
	if degenerate := overlayTransform([2]float32{0, 600}); degenerate.Scale != [2]float32{1, 1} {
		t.Errorf("zero display size scale = %v", degenerate.Scale)
	}
}
