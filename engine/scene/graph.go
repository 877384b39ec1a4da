// Package scene stores the drawable node forest as an arena addressed by index.
package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/anima-viewer/engine/core"
)

// NoParent marks a root node.
const NoParent = -1

// Primitive is a range of the shared index buffer drawn with one material.
type Primitive struct {
	FirstIndex uint32
	IndexCount uint32
	// Index into the material list, or -1 for the default material.
	Material int
}

type Node struct {
	Name     string
	Parent   int
	Local    mgl32.Mat4
	Mesh     []Primitive
	Children []int
}

// Graph is the scene forest. Nodes refer to each other by index only, so the
// whole graph can be copied by value.
type Graph struct {
	Nodes []Node
	Roots []int
}

func NewGraph() *Graph {
	return &Graph{}
}

// AddNode appends a node under parent (NoParent for a root) and returns its index.
func (g *Graph) AddNode(name string, parent int, local mgl32.Mat4, mesh ...Primitive) (int, error) {
	if parent != NoParent && (parent < 0 || parent >= len(g.Nodes)) {
		return 0, fmt.Errorf("%w: parent %d out of range for node %q", core.ErrInvalidScene, parent, name)
	}
	id := len(g.Nodes)
	g.Nodes = append(g.Nodes, Node{
		Name:   name,
		Parent: parent,
		Local:  local,
		Mesh:   mesh,
	})
	if parent == NoParent {
		g.Roots = append(g.Roots, id)
	} else {
		g.Nodes[parent].Children = append(g.Nodes[parent].Children, id)
	}
	return id, nil
}

// SetLocal replaces a node's local matrix. World matrices pick it up on the next walk.
func (g *Graph) SetLocal(id int, local mgl32.Mat4) {
	g.Nodes[id].Local = local
}

// WorldMatrix multiplies the local matrices from the root down to id by
// chasing parent indices. Nothing is cached.
func (g *Graph) WorldMatrix(id int) mgl32.Mat4 {
	m := g.Nodes[id].Local
	for p := g.Nodes[id].Parent; p != NoParent; p = g.Nodes[p].Parent {
		m = g.Nodes[p].Local.Mul4(m)
	}
	return m
}

// Walk visits nodes depth first, a parent before its children, roots in order.
// Returning an error stops the walk.
func (g *Graph) Walk(visit func(id int, n *Node) error) error {
	for _, r := range g.Roots {
		if err := g.walk(r, visit); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) walk(id int, visit func(id int, n *Node) error) error {
	if err := visit(id, &g.Nodes[id]); err != nil {
		return err
	}
	for _, c := range g.Nodes[id].Children {
		if err := g.walk(c, visit); err != nil {
			return err
		}
	}
	return nil
}

// PrimitiveCount counts primitives with a nonzero index count.
func (g *Graph) PrimitiveCount() int {
	n := 0
	for i := range g.Nodes {
		for _, p := range g.Nodes[i].Mesh {
			if p.IndexCount > 0 {
				n++
			}
		}
	}
	return n
}

// Validate checks parent links, child links and cycles.
func (g *Graph) Validate() error {
	for id, n := range g.Nodes {
		if n.Parent != NoParent {
			if n.Parent < 0 || n.Parent >= len(g.Nodes) {
				return fmt.Errorf("%w: node %d has parent %d out of range", core.ErrInvalidScene, id, n.Parent)
			}
		}
		for _, c := range n.Children {
			if c < 0 || c >= len(g.Nodes) || g.Nodes[c].Parent != id {
				return fmt.Errorf("%w: node %d lists child %d that does not point back", core.ErrInvalidScene, id, c)
			}
		}
		steps := 0
		for p := n.Parent; p != NoParent; p = g.Nodes[p].Parent {
			steps++
			if steps > len(g.Nodes) {
				return fmt.Errorf("%w: cycle through node %d", core.ErrInvalidScene, id)
			}
		}
	}
	return nil
}
