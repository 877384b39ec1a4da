package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want uint32
	}{
		{5, 1, 10, 5},
		{0, 1, 10, 1},
		{20, 1, 10, 10},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
	if got := Clamp(float32(-2.5), -1, 1); got != -1 {
		t.Errorf("float clamp = %v", got)
	}
}

func TestTransformLocal(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{1, 2, 3}
	tr.Scale = mgl32.Vec3{2, 2, 2}
	tr.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})

	p := tr.Local().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	// Scale to x=2, rotate +90 about Y to z=-2, then translate.
	want := mgl32.Vec4{1, 2, 1, 1}
	if !p.ApproxEqualThreshold(want, 1e-5) {
		t.Fatalf("transformed point = %v, want %v", p, want)
	}
}
