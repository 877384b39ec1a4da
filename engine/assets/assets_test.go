package assets

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
)

func TestDetermineAssetType(t *testing.T) {
	tests := map[string]metadata.ResourceType{
		"shaders/scene.vert.spv": metadata.ResourceTypeShader,
		"textures/a.PNG":         metadata.ResourceTypeImage,
		"a.jpeg":                 metadata.ResourceTypeImage,
		"models/helmet.glb":      metadata.ResourceTypeScene,
		"models/box.gltf":        metadata.ResourceTypeScene,
		"fonts/mono.fnt":         metadata.ResourceTypeBitmapFont,
		"notes.txt":              metadata.ResourceTypeNone,
	}
	for path, want := range tests {
		if got := DetermineAssetType(path); got != want {
			t.Errorf("DetermineAssetType(%q) = %s, want %s", path, got, want)
		}
	}
}

func writeSPIRV(t *testing.T, path string) {
	t.Helper()
	data := make([]byte, 20)
	binary.LittleEndian.PutUint32(data, 0x07230203)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadShaderRecordsLoad(t *testing.T) {
	dir := t.TempDir()
	writeSPIRV(t, filepath.Join(dir, "scene.vert.spv"))

	am := NewAssetManager()
	code, err := am.ReadShader(dir, "scene.vert.spv")
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 20 {
		t.Errorf("got %d bytes", len(code))
	}
	if info, ok := am.Loaded(filepath.Join(dir, "scene.vert.spv")); !ok || info.Type != metadata.ResourceTypeShader {
		t.Errorf("load not recorded: %+v %v", info, ok)
	}
}

func TestLoadAssetErrors(t *testing.T) {
	am := NewAssetManager()
	if _, err := am.LoadAsset("readme.md", nil); !errors.Is(err, core.ErrAssetLoad) {
		t.Errorf("unknown type: %v", err)
	}
	if _, err := am.LoadAsset(filepath.Join(t.TempDir(), "missing.spv"), nil); !errors.Is(err, core.ErrAssetLoad) {
		t.Errorf("missing file: %v", err)
	}
}

func TestShaderWatcherPushesShaderChanged(t *testing.T) {
	dir := t.TempDir()
	events := core.NewEventQueue(16)
	sw, err := NewShaderWatcher(dir, events)
	if err != nil {
		t.Fatal(err)
	}
	defer sw.Close()

	writeSPIRV(t, filepath.Join(dir, "scene.frag.spv"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range events.Drain() {
			if e.Code != core.EVENT_CODE_SHADER_CHANGED {
				t.Fatalf("unexpected event %s", e.Code)
			}
			if filepath.Base(e.Path) == "scene.frag.spv" {
				return
			}
			t.Fatalf("event for non-shader %s", e.Path)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no shader change event")
}

func TestShaderWatcherCloseTwice(t *testing.T) {
	sw, err := NewShaderWatcher(t.TempDir(), core.NewEventQueue(4))
	if err != nil {
		t.Fatal(err)
	}
	if err := sw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sw.Close(); err == nil {
		t.Error("second close should fail")
	}
}

func TestCheckShadersRejectsPartialWrites(t *testing.T) {
	dir := t.TempDir()
	writeSPIRV(t, filepath.Join(dir, "scene.vert.spv"))
	writeSPIRV(t, filepath.Join(dir, "scene.frag.spv"))
	pair := ShaderPair{Vertex: "scene.vert.spv", Fragment: "scene.frag.spv"}

	am := NewAssetManager()
	if err := am.CheckShaders(dir, pair); err != nil {
		t.Fatalf("complete pair: %v", err)
	}

	// the truncate that starts a compiler write
	if err := os.WriteFile(filepath.Join(dir, "scene.frag.spv"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := am.CheckShaders(dir, pair); !errors.Is(err, core.ErrAssetLoad) {
		t.Errorf("empty fragment: err = %v, want ErrAssetLoad", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "scene.frag.spv"), []byte{0x03, 0x02, 0x23, 0x07, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := am.CheckShaders(dir, pair); !errors.Is(err, core.ErrAssetLoad) {
		t.Errorf("truncated fragment: err = %v, want ErrAssetLoad", err)
	}

	if err := am.CheckShaders(dir, ShaderPair{Vertex: "scene.vert.spv", Fragment: "missing.spv"}); !errors.Is(err, core.ErrAssetLoad) {
		t.Errorf("missing fragment: err = %v, want ErrAssetLoad", err)
	}
}
