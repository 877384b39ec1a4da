package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/anima-viewer/engine/core"
)

func TestTranslateKey(t *testing.T) {
	cases := map[glfw.Key]core.KeyCode{
		glfw.KeyEscape: core.KEY_ESCAPE,
		glfw.KeyLeft:   core.KEY_LEFT,
		glfw.KeyF1:     core.KEY_F1,
		glfw.KeyF5:     core.KEY_F5,
		glfw.KeyR:      core.KEY_R,
		glfw.KeyU:      core.KEY_U,
		glfw.KeyF12:    core.KEY_UNKNOWN,
	}
	for in, want := range cases {
		if got := TranslateKey(in); got != want {
			t.Errorf("TranslateKey(%d) = %#x, want %#x", in, got, want)
		}
	}
}

func TestTranslateButton(t *testing.T) {
	if b, ok := TranslateButton(glfw.MouseButtonRight); !ok || b != core.BUTTON_RIGHT {
		t.Errorf("right button = %d, %v", b, ok)
	}
	if _, ok := TranslateButton(glfw.MouseButton4); ok {
		t.Error("extra buttons should be ignored")
	}
}
