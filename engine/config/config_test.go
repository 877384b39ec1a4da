package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Renderer.FramesInFlight != 2 {
		t.Fatalf("frames_in_flight = %d, want 2", cfg.Renderer.FramesInFlight)
	}
	if cfg.Window.Width != 1280 || cfg.Window.Height != 720 {
		t.Fatalf("window = %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renderer.toml")
	data := `
[window]
width = 800
height = 600

[renderer]
frames_in_flight = 3
present_mode = "mailbox"

[scene]
path = "models/box.gltf"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Window.Width != 800 || cfg.Window.Height != 600 {
		t.Errorf("window = %dx%d, want 800x600", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Renderer.FramesInFlight != 3 || cfg.Renderer.PresentMode != "mailbox" {
		t.Errorf("renderer = %+v", cfg.Renderer)
	}
	if cfg.Scene.Path != "models/box.gltf" {
		t.Errorf("scene path = %q", cfg.Scene.Path)
	}
	// Untouched sections keep their defaults.
	if cfg.Camera.FOV != 45 {
		t.Errorf("camera fov = %v, want 45", cfg.Camera.FOV)
	}
}

func TestDecodeValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"frames too high", "[renderer]\nframes_in_flight = 8\n", "frames_in_flight"},
		{"frames zero", "[renderer]\nframes_in_flight = 0\n", "frames_in_flight"},
		{"bad present mode", "[renderer]\npresent_mode = \"vsync\"\n", "present_mode"},
		{"bad near far", "[camera]\nnear = 10.0\nfar = 1.0\n", "near/far"},
		{"bad log level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"unknown key", "[renderer]\nframes = 2\n", "unknown configuration keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decode([]byte(tt.data), Default())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
