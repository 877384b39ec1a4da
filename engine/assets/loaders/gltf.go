package loaders

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/math"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-viewer/engine/scene"
)

const (
	attributePosition  = "POSITION"
	attributeNormal    = "NORMAL"
	attributeTexCoord0 = "TEXCOORD_0"
)

var identityMatrix = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

/**
 * @brief A loaded glTF scene: the node arena plus everything the GPU needs.
 * Primitive index ranges address Geometry.Indices; material and texture
 * references index Materials and Textures.
 */
type SceneData struct {
	Graph     *scene.Graph
	Geometry  *metadata.GeometryData
	Materials []metadata.Material
	Textures  []*metadata.ImageResourceData
}

type GLTFLoader struct{}

// Load accepts *metadata.ImageResourceParams to bound texture sizes.
func (gl *GLTFLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	imageParams, _ := params.(*metadata.ImageResourceParams)
	data, err := LoadGLTF(path, imageParams)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Name:     filepath.Base(path),
		FullPath: path,
		Type:     metadata.ResourceTypeScene,
		DataSize: uint64(len(data.Geometry.VertexBytes()) + len(data.Geometry.IndexBytes())),
		Data:     data,
	}, nil
}

func (gl *GLTFLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

type gltfBuilder struct {
	doc    *gltf.Document
	dir    string
	params *metadata.ImageResourceParams
	out    *SceneData

	meshes   map[uint32][]scene.Primitive
	images   map[uint32]int
	visiting map[uint32]bool
	// Images referenced by materials, decoded together by decodeImages.
	pending []pendingImage
}

type pendingImage struct {
	source uint32
	slot   int
}

func LoadGLTF(path string, params *metadata.ImageResourceParams) (*SceneData, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", core.ErrAssetLoad, path, err)
	}
	b := &gltfBuilder{
		doc:    doc,
		dir:    filepath.Dir(path),
		params: params,
		out: &SceneData{
			Graph:    scene.NewGraph(),
			Geometry: &metadata.GeometryData{},
		},
		meshes:   map[uint32][]scene.Primitive{},
		images:   map[uint32]int{},
		visiting: map[uint32]bool{},
	}

	if err := b.loadMaterials(); err != nil {
		return nil, err
	}
	if err := b.decodeImages(); err != nil {
		return nil, err
	}
	for _, root := range b.roots() {
		if err := b.addNode(root, scene.NoParent); err != nil {
			return nil, err
		}
	}
	if err := b.out.Graph.Validate(); err != nil {
		return nil, err
	}
	if len(b.out.Geometry.Indices) == 0 {
		return nil, fmt.Errorf("%w: %s has no drawable triangles", core.ErrInvalidScene, path)
	}
	core.LogInfo("Loaded %s: %d nodes, %d primitives, %d materials, %d textures.",
		filepath.Base(path), len(b.out.Graph.Nodes), b.out.Graph.PrimitiveCount(), len(b.out.Materials), len(b.out.Textures))
	return b.out, nil
}

// roots returns the default scene's nodes, scene 0's when no default is
// set, or every parentless node for documents without scenes.
func (b *gltfBuilder) roots() []uint32 {
	doc := b.doc
	if len(doc.Scenes) > 0 {
		var index uint32
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			index = *doc.Scene
		}
		return doc.Scenes[index].Nodes
	}
	hasParent := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if int(c) < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var roots []uint32
	for i, p := range hasParent {
		if !p {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

func (b *gltfBuilder) addNode(index uint32, parent int) error {
	if int(index) >= len(b.doc.Nodes) {
		return fmt.Errorf("%w: node %d out of range", core.ErrInvalidScene, index)
	}
	if b.visiting[index] {
		return fmt.Errorf("%w: node %d is its own ancestor", core.ErrInvalidScene, index)
	}
	b.visiting[index] = true
	defer delete(b.visiting, index)

	node := b.doc.Nodes[index]
	var mesh []scene.Primitive
	if node.Mesh != nil {
		var err error
		if mesh, err = b.loadMesh(*node.Mesh); err != nil {
			return err
		}
	}

	id, err := b.out.Graph.AddNode(node.Name, parent, nodeLocal(node), mesh...)
	if err != nil {
		return err
	}
	for _, child := range node.Children {
		if err := b.addNode(child, id); err != nil {
			return err
		}
	}
	return nil
}

// nodeLocal uses the node matrix when one is set, otherwise composes TRS.
func nodeLocal(node *gltf.Node) mgl32.Mat4 {
	if m := node.MatrixOrDefault(); m != identityMatrix {
		return math.Mat4FromFloat64(m)
	}
	t, r, s := node.TranslationOrDefault(), node.RotationOrDefault(), node.ScaleOrDefault()
	transform := math.Transform{
		Position: mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])},
		Rotation: mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}},
		Scale:    mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])},
	}
	return transform.Local()
}

// loadMesh appends a mesh's primitives to the shared buffers once and
// returns the ranges for every node that references it.
func (b *gltfBuilder) loadMesh(index uint32) ([]scene.Primitive, error) {
	if prims, ok := b.meshes[index]; ok {
		return prims, nil
	}
	if int(index) >= len(b.doc.Meshes) {
		return nil, fmt.Errorf("%w: mesh %d out of range", core.ErrInvalidScene, index)
	}
	mesh := b.doc.Meshes[index]
	prims := make([]scene.Primitive, 0, len(mesh.Primitives))
	for i, p := range mesh.Primitives {
		if p.Mode != gltf.PrimitiveTriangles {
			core.LogWarn("Mesh %q primitive %d is not a triangle list, skipped.", mesh.Name, i)
			continue
		}
		prim, err := b.loadPrimitive(p)
		if err != nil {
			return nil, fmt.Errorf("mesh %q primitive %d: %w", mesh.Name, i, err)
		}
		prims = append(prims, prim)
	}
	b.meshes[index] = prims
	return prims, nil
}

func (b *gltfBuilder) accessor(index uint32) (*gltf.Accessor, error) {
	if int(index) >= len(b.doc.Accessors) {
		return nil, fmt.Errorf("%w: accessor %d out of range", core.ErrInvalidScene, index)
	}
	return b.doc.Accessors[index], nil
}

func (b *gltfBuilder) loadPrimitive(p *gltf.Primitive) (scene.Primitive, error) {
	posIndex, ok := p.Attributes[attributePosition]
	if !ok {
		return scene.Primitive{}, fmt.Errorf("%w: primitive has no POSITION", core.ErrInvalidScene)
	}
	acr, err := b.accessor(posIndex)
	if err != nil {
		return scene.Primitive{}, err
	}
	positions, err := modeler.ReadPosition(b.doc, acr, nil)
	if err != nil {
		return scene.Primitive{}, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
	}

	var normals [][3]float32
	if idx, ok := p.Attributes[attributeNormal]; ok {
		if acr, err = b.accessor(idx); err != nil {
			return scene.Primitive{}, err
		}
		if normals, err = modeler.ReadNormal(b.doc, acr, nil); err != nil {
			return scene.Primitive{}, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
		}
	}
	var uvs [][2]float32
	if idx, ok := p.Attributes[attributeTexCoord0]; ok {
		if acr, err = b.accessor(idx); err != nil {
			return scene.Primitive{}, err
		}
		if uvs, err = modeler.ReadTextureCoord(b.doc, acr, nil); err != nil {
			return scene.Primitive{}, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
		}
	}

	var indices []uint32
	if p.Indices != nil {
		if acr, err = b.accessor(*p.Indices); err != nil {
			return scene.Primitive{}, err
		}
		if indices, err = modeler.ReadIndices(b.doc, acr, nil); err != nil {
			return scene.Primitive{}, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	material := -1
	if p.Material != nil && int(*p.Material) < len(b.out.Materials) {
		material = int(*p.Material)
	}
	return appendPrimitive(b.out.Geometry, positions, normals, uvs, indices, material)
}

// appendPrimitive interleaves the attributes into geometry and offsets the
// indices by the primitive's first vertex.
func appendPrimitive(geometry *metadata.GeometryData, positions, normals [][3]float32, uvs [][2]float32, indices []uint32, material int) (scene.Primitive, error) {
	base := uint32(len(geometry.Vertices))
	for i, pos := range positions {
		v := metadata.Vertex{Position: pos, Normal: [3]float32{0, 0, 1}}
		if i < len(normals) {
			v.Normal = normals[i]
		}
		if i < len(uvs) {
			v.UV = uvs[i]
		}
		geometry.Vertices = append(geometry.Vertices, v)
	}

	first := uint32(len(geometry.Indices))
	count := uint32(len(indices)) / 3 * 3
	for _, idx := range indices[:count] {
		if int(idx) >= len(positions) {
			return scene.Primitive{}, fmt.Errorf("%w: index %d past %d vertices", core.ErrInvalidScene, idx, len(positions))
		}
		geometry.Indices = append(geometry.Indices, base+idx)
	}
	return scene.Primitive{FirstIndex: first, IndexCount: count, Material: material}, nil
}

func (b *gltfBuilder) loadMaterials() error {
	for i, m := range b.doc.Materials {
		material := metadata.DefaultMaterial()
		material.Name = m.Name
		if material.Name == "" {
			material.Name = fmt.Sprintf("material_%d", i)
		}
		if pbr := m.PBRMetallicRoughness; pbr != nil {
			if f := pbr.BaseColorFactor; f != nil {
				material.BaseColorFactor = [4]float32{float32(f[0]), float32(f[1]), float32(f[2]), float32(f[3])}
			}
			if tex := pbr.BaseColorTexture; tex != nil {
				index, err := b.loadTexture(tex.Index)
				if err != nil {
					return fmt.Errorf("material %q: %w", material.Name, err)
				}
				material.Texture = index
			}
		}
		b.out.Materials = append(b.out.Materials, material)
	}
	return nil
}

// loadTexture reserves a slot in SceneData.Textures for the image behind a
// glTF texture and returns it, or -1 when the texture has no source. Each
// image gets one slot however many textures share it.
func (b *gltfBuilder) loadTexture(textureIndex uint32) (int, error) {
	if int(textureIndex) >= len(b.doc.Textures) {
		return -1, fmt.Errorf("%w: texture %d out of range", core.ErrInvalidScene, textureIndex)
	}
	source := b.doc.Textures[textureIndex].Source
	if source == nil {
		return -1, nil
	}
	if loaded, ok := b.images[*source]; ok {
		return loaded, nil
	}
	if int(*source) >= len(b.doc.Images) {
		return -1, fmt.Errorf("%w: image %d out of range", core.ErrInvalidScene, *source)
	}

	b.out.Textures = append(b.out.Textures, nil)
	slot := len(b.out.Textures) - 1
	b.images[*source] = slot
	b.pending = append(b.pending, pendingImage{source: *source, slot: slot})
	return slot, nil
}

// decodeImages reads every reserved image and decodes them on a worker pool.
// Each job writes only its own slot.
func (b *gltfBuilder) decodeImages() error {
	if len(b.pending) == 0 {
		return nil
	}
	jobs, err := core.NewJobSystem(min(runtime.NumCPU(), len(b.pending)), len(b.pending))
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var errs []error
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	for _, p := range b.pending {
		encoded, err := b.imageBytes(b.doc.Images[p.source])
		if err != nil {
			fail(fmt.Errorf("image %d: %w", p.source, err))
			continue
		}
		p := p
		jobs.Submit(core.JobTask{
			Run: func() error {
				decoded, err := DecodeImageBytes(encoded, b.params)
				if err != nil {
					return fmt.Errorf("image %d: %w", p.source, err)
				}
				b.out.Textures[p.slot] = decoded
				return nil
			},
			OnFailure: fail,
		})
	}
	jobs.Shutdown()
	b.pending = nil
	return errors.Join(errs...)
}

func (b *gltfBuilder) imageBytes(img *gltf.Image) ([]byte, error) {
	switch {
	case img.BufferView != nil:
		if int(*img.BufferView) >= len(b.doc.BufferViews) {
			return nil, fmt.Errorf("%w: buffer view %d out of range", core.ErrInvalidScene, *img.BufferView)
		}
		view := b.doc.BufferViews[*img.BufferView]
		buffer := view.Buffer
		if int(buffer) >= len(b.doc.Buffers) {
			return nil, fmt.Errorf("%w: buffer %d out of range", core.ErrInvalidScene, buffer)
		}
		data := b.doc.Buffers[buffer].Data
		start, end := int(view.ByteOffset), int(view.ByteOffset)+int(view.ByteLength)
		if end > len(data) {
			return nil, fmt.Errorf("%w: buffer view past end of buffer", core.ErrInvalidScene)
		}
		return data[start:end], nil
	case img.IsEmbeddedResource():
		data, err := img.MarshalData()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
		}
		return data, nil
	case img.URI != "":
		uri, err := url.PathUnescape(img.URI)
		if err != nil {
			uri = img.URI
		}
		if strings.Contains(uri, "://") {
			return nil, fmt.Errorf("%w: remote image %q", core.ErrAssetLoad, uri)
		}
		data, err := os.ReadFile(filepath.Join(b.dir, filepath.FromSlash(uri)))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: image has neither uri nor buffer view", core.ErrInvalidScene)
	}
}
