package renderer

import (
	"github.com/spaghettifunk/anima-viewer/engine/scene"
)

// RecordScene writes the scene pass for image into r: one push of the world
// matrix per drawable node and one indexed draw per primitive, in depth-first
// order with parents before children.
func RecordScene(r Recorder, g *scene.Graph, slot int, image uint32) error {
	r.BeginRenderPass(image)
	r.BindPipeline()
	r.BindGlobalSet(slot)
	r.BindGeometry()

	err := g.Walk(func(id int, n *scene.Node) error {
		if !drawable(n) {
			return nil
		}
		r.PushTransform(g.WorldMatrix(id))
		for _, p := range n.Mesh {
			if p.IndexCount == 0 {
				continue
			}
			r.BindMaterialSet(p.Material)
			r.DrawIndexed(p.IndexCount, 1, p.FirstIndex)
		}
		return nil
	})

	r.EndRenderPass()
	return err
}

func drawable(n *scene.Node) bool {
	for _, p := range n.Mesh {
		if p.IndexCount > 0 {
			return true
		}
	}
	return false
}
