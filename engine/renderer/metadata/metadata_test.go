package metadata

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestLayoutSizes(t *testing.T) {
	if VertexSize != 32 {
		t.Errorf("VertexSize = %d, want 32", VertexSize)
	}
	if UIVertexSize != 32 {
		t.Errorf("UIVertexSize = %d, want 32", UIVertexSize)
	}
	if CameraUniformSize != 144 {
		t.Errorf("CameraUniformSize = %d, want 144", CameraUniformSize)
	}
	if PushConstantSize != 64 {
		t.Errorf("PushConstantSize = %d, want 64", PushConstantSize)
	}
}

func TestCameraUniformBytesAliasesStruct(t *testing.T) {
	u := CameraUniform{Projection: mgl32.Ident4(), View: mgl32.Ident4()}
	b := u.Bytes()
	if uint64(len(b)) != CameraUniformSize {
		t.Fatalf("len = %d", len(b))
	}
	// 1.0f little endian is 00 00 80 3f.
	if b[0] != 0x00 || b[3] != 0x3f {
		t.Fatalf("first float bytes = % x", b[:4])
	}
}

func TestGeometryBytes(t *testing.T) {
	g := GeometryData{
		Vertices: make([]Vertex, 3),
		Indices:  []uint32{0, 1, 2},
	}
	if len(g.VertexBytes()) != 96 || len(g.IndexBytes()) != 12 {
		t.Fatalf("vertex bytes = %d, index bytes = %d", len(g.VertexBytes()), len(g.IndexBytes()))
	}
	var empty GeometryData
	if empty.VertexBytes() != nil || empty.IndexBytes() != nil {
		t.Fatal("empty geometry should have no bytes")
	}
}

func TestExtent(t *testing.T) {
	if !(Extent{Width: 0, Height: 600}).IsZero() {
		t.Error("zero width should be zero")
	}
	if a := (Extent{Width: 800, Height: 400}).Aspect(); a != 2 {
		t.Errorf("aspect = %v", a)
	}
}
