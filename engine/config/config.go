package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Title  string `toml:"title"`
	X      int    `toml:"x"`
	Y      int    `toml:"y"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type RendererConfig struct {
	// Number of frame slots in flight.
	FramesInFlight int `toml:"frames_in_flight"`
	// fifo, mailbox or immediate. Unsupported modes fall back to fifo.
	PresentMode string     `toml:"present_mode"`
	Validation  bool       `toml:"validation"`
	ClearColor  [4]float32 `toml:"clear_color"`
}

type SceneConfig struct {
	Path           string     `toml:"path"`
	MaxTextureSize int        `toml:"max_texture_size"`
	LightPosition  [3]float32 `toml:"light_position"`
}

type CameraConfig struct {
	FOV      float32 `toml:"fov"`
	Near     float32 `toml:"near"`
	Far      float32 `toml:"far"`
	Distance float32 `toml:"distance"`
}

type ShaderConfig struct {
	Dir       string `toml:"dir"`
	HotReload bool   `toml:"hot_reload"`
}

type UIConfig struct {
	Enabled bool    `toml:"enabled"`
	Font    string  `toml:"font"`
	Scale   float32 `toml:"scale"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Scene    SceneConfig    `toml:"scene"`
	Camera   CameraConfig   `toml:"camera"`
	Shaders  ShaderConfig   `toml:"shaders"`
	UI       UIConfig       `toml:"ui"`
	Log      LogConfig      `toml:"log"`
}

const MaxFramesInFlight = 3

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Anima Viewer",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			PresentMode:    "fifo",
			Validation:     false,
			ClearColor:     [4]float32{0.05, 0.05, 0.08, 1.0},
		},
		Scene: SceneConfig{
			Path:           "assets/models/scene.gltf",
			MaxTextureSize: 2048,
			LightPosition:  [3]float32{5, 5, 5},
		},
		Camera: CameraConfig{
			FOV:      45,
			Near:     0.1,
			Far:      256,
			Distance: 4,
		},
		Shaders: ShaderConfig{
			Dir:       "assets/shaders",
			HotReload: true,
		},
		UI: UIConfig{
			Enabled: true,
			Font:    "assets/fonts/default.fnt",
			Scale:   1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a TOML file over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode overlays TOML data onto cfg and validates the result.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("unknown configuration keys:\n%s", strict.String())
		}
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Renderer.FramesInFlight < 1 || c.Renderer.FramesInFlight > MaxFramesInFlight {
		errs = append(errs, fmt.Errorf("renderer.frames_in_flight must be in [1, %d], got %d", MaxFramesInFlight, c.Renderer.FramesInFlight))
	}
	switch strings.ToLower(c.Renderer.PresentMode) {
	case "fifo", "mailbox", "immediate":
	default:
		errs = append(errs, fmt.Errorf("renderer.present_mode %q is not one of fifo, mailbox, immediate", c.Renderer.PresentMode))
	}
	if c.Scene.MaxTextureSize < 1 {
		errs = append(errs, fmt.Errorf("scene.max_texture_size must be positive, got %d", c.Scene.MaxTextureSize))
	}
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		errs = append(errs, fmt.Errorf("camera.fov must be in (0, 180), got %v", c.Camera.FOV))
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		errs = append(errs, fmt.Errorf("camera near/far must satisfy 0 < near < far, got %v/%v", c.Camera.Near, c.Camera.Far))
	}
	if c.UI.Scale <= 0 {
		errs = append(errs, fmt.Errorf("ui.scale must be positive, got %v", c.UI.Scale))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not a known level", c.Log.Level))
	}
	return errors.Join(errs...)
}
