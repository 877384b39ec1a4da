package vulkan

import (
	"errors"
	stdmath "math"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

func TestParsePresentMode(t *testing.T) {
	tests := []struct {
		in   string
		want vk.PresentMode
	}{
		{"fifo", vk.PresentModeFifo},
		{"mailbox", vk.PresentModeMailbox},
		{"Immediate", vk.PresentModeImmediate},
		{"", vk.PresentModeFifo},
		{"vsync", vk.PresentModeFifo},
	}
	for _, tt := range tests {
		if got := ParsePresentMode(tt.in); got != tt.want {
			t.Errorf("ParsePresentMode(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestChoosePresentModeFallsBackToFifo(t *testing.T) {
	modes := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate}
	if got := choosePresentMode(modes, vk.PresentModeMailbox); got != vk.PresentModeFifo {
		t.Errorf("mailbox unsupported: got %d, want fifo", got)
	}
	if got := choosePresentMode(modes, vk.PresentModeImmediate); got != vk.PresentModeImmediate {
		t.Errorf("immediate supported: got %d", got)
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	other := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	if got := chooseSurfaceFormat([]vk.SurfaceFormat{other, preferred}); got.Format != preferred.Format {
		t.Errorf("got format %d, want B8G8R8A8_UNORM", got.Format)
	}
	if got := chooseSurfaceFormat([]vk.SurfaceFormat{other}); got.Format != other.Format {
		t.Errorf("fallback got format %d, want first reported", got.Format)
	}
}

func TestChooseExtent(t *testing.T) {
	fixed := vk.SurfaceCapabilities{CurrentExtent: vk.Extent2D{Width: 800, Height: 600}}
	if got := chooseExtent(&fixed, metadata.Extent{Width: 1024, Height: 768}); got.Width != 800 || got.Height != 600 {
		t.Errorf("current extent ignored: %+v", got)
	}

	free := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: stdmath.MaxUint32, Height: stdmath.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 64, Height: 64},
		MaxImageExtent: vk.Extent2D{Width: 2048, Height: 2048},
	}
	if got := chooseExtent(&free, metadata.Extent{Width: 4096, Height: 10}); got.Width != 2048 || got.Height != 64 {
		t.Errorf("clamped extent = %+v, want 2048x64", got)
	}
	if got := chooseExtent(&free, metadata.Extent{Width: 1280, Height: 720}); got.Width != 1280 || got.Height != 720 {
		t.Errorf("in-range extent = %+v", got)
	}
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		min, max uint32
		want     uint32
	}{
		{2, 0, 3},
		{2, 8, 3},
		{3, 3, 3},
	}
	for _, tt := range tests {
		caps := vk.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
		if got := chooseImageCount(&caps); got != tt.want {
			t.Errorf("min %d max %d: got %d, want %d", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestSurfaceStatus(t *testing.T) {
	tests := []struct {
		result vk.Result
		want   metadata.SurfaceStatus
	}{
		{vk.Success, metadata.SurfaceOptimal},
		{vk.Suboptimal, metadata.SurfaceSuboptimal},
		{vk.ErrorOutOfDate, metadata.SurfaceOutOfDate},
	}
	for _, tt := range tests {
		got, err := surfaceStatus("acquire", tt.result)
		if err != nil || got != tt.want {
			t.Errorf("result %d: got %s, %v; want %s", tt.result, got, err, tt.want)
		}
	}

	if _, err := surfaceStatus("acquire", vk.ErrorSurfaceLost); !errors.Is(err, core.ErrSurfaceLost) {
		t.Errorf("surface lost: got %v", err)
	}
	if _, err := surfaceStatus("present", vk.ErrorDeviceLost); !errors.Is(err, core.ErrDeviceLost) {
		t.Errorf("device lost: got %v", err)
	}
}

func TestPresentOnQueueReturnsStatusAndError(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.SetQueueFamily(1)

	status, err := presentOnQueue(pool, 1, func() vk.Result { return vk.Suboptimal })
	if err != nil || status != metadata.SurfaceSuboptimal {
		t.Errorf("suboptimal: got %s, %v", status, err)
	}
	status, err = presentOnQueue(pool, 1, func() vk.Result { return vk.ErrorOutOfDate })
	if err != nil || status != metadata.SurfaceOutOfDate {
		t.Errorf("out of date: got %s, %v", status, err)
	}
	if _, err := presentOnQueue(pool, 1, func() vk.Result { return vk.ErrorDeviceLost }); !errors.Is(err, core.ErrDeviceLost) {
		t.Errorf("device lost: got %v", err)
	}
}
