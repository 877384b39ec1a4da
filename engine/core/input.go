package core

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// Key code definitions
type KeyCode uint16

const (
	KEY_UNKNOWN KeyCode = 0x00
	KEY_TAB     KeyCode = 0x09
	KEY_ENTER   KeyCode = 0x0D
	KEY_ESCAPE  KeyCode = 0x1B
	KEY_SPACE   KeyCode = 0x20
	KEY_LEFT    KeyCode = 0x25
	KEY_UP      KeyCode = 0x26
	KEY_RIGHT   KeyCode = 0x27
	KEY_DOWN    KeyCode = 0x28
	KEY_R       KeyCode = 0x52
	KEY_U       KeyCode = 0x55
	KEY_F1      KeyCode = 0x70
	KEY_F5      KeyCode = 0x74

	KEYS_MAX_KEYS KeyCode = 0xFF
)

// Mouse state structure
type MouseState struct {
	X       float64
	Y       float64
	Buttons [BUTTON_MAX_BUTTONS]bool
}

// Keyboard state structure
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS + 1]bool
}

// InputState holds the current and previous keyboard and mouse states. It is
// fed from drained events and advanced once per frame.
type InputState struct {
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
	MouseCurrent     MouseState
	MousePrevious    MouseState
	// Scroll accumulated since the last Update.
	Scroll float64
}

func NewInputState() *InputState {
	return &InputState{}
}

// Apply folds a single event into the current state.
func (s *InputState) Apply(e EventContext) {
	switch e.Code {
	case EVENT_CODE_KEY_PRESSED, EVENT_CODE_KEY_RELEASED:
		if e.Key <= KEYS_MAX_KEYS {
			s.KeyboardCurrent.Keys[e.Key] = e.Code == EVENT_CODE_KEY_PRESSED
		}
	case EVENT_CODE_BUTTON_PRESSED, EVENT_CODE_BUTTON_RELEASED:
		if e.Button < BUTTON_MAX_BUTTONS {
			s.MouseCurrent.Buttons[e.Button] = e.Code == EVENT_CODE_BUTTON_PRESSED
		}
		s.MouseCurrent.X, s.MouseCurrent.Y = e.X, e.Y
	case EVENT_CODE_MOUSE_MOVED:
		s.MouseCurrent.X, s.MouseCurrent.Y = e.X, e.Y
	case EVENT_CODE_MOUSE_WHEEL:
		s.Scroll += e.Z
	}
}

// Update copies the current states to the previous ones and clears the scroll.
func (s *InputState) Update() {
	s.KeyboardPrevious = s.KeyboardCurrent
	s.MousePrevious = s.MouseCurrent
	s.Scroll = 0
}

func (s *InputState) IsKeyDown(key KeyCode) bool {
	return s.KeyboardCurrent.Keys[key]
}

// KeyPressed reports a key that went down since the last Update.
func (s *InputState) KeyPressed(key KeyCode) bool {
	return s.KeyboardCurrent.Keys[key] && !s.KeyboardPrevious.Keys[key]
}

func (s *InputState) IsButtonDown(button Button) bool {
	return s.MouseCurrent.Buttons[button]
}

// ButtonPressed reports a button that went down since the last Update.
func (s *InputState) ButtonPressed(button Button) bool {
	return s.MouseCurrent.Buttons[button] && !s.MousePrevious.Buttons[button]
}

func (s *InputState) MousePosition() (float64, float64) {
	return s.MouseCurrent.X, s.MouseCurrent.Y
}

// MouseDelta is the pointer movement since the last Update.
func (s *InputState) MouseDelta() (float64, float64) {
	return s.MouseCurrent.X - s.MousePrevious.X, s.MouseCurrent.Y - s.MousePrevious.Y
}
