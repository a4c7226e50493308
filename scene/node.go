package scene

import (
	"iter"
	"slices"
	"sync/atomic"

	"render-pipeline/core"
	"render-pipeline/math"
)

// Node is one element of the scene graph. World matrices are cached and
// invalidated down the subtree whenever a local transform changes through
// the setters.
type Node struct {
	Name      string
	Id        uint32
	Transform core.Transform
	Parent    *Node
	Children  []*Node
	Mesh      *Mesh
	// Visible hides the node and its whole subtree.
	Visible bool

	// OnUpdate, if set, is called by Update once per frame.
	OnUpdate func(n *Node, time, delta float32)

	world      math.Mat4
	worldDirty bool
}

var nextNodeID atomic.Uint32

func NewNode(name string) *Node {
	return &Node{
		Name:       name,
		Id:         nextNodeID.Add(1),
		Transform:  core.NewTransform(),
		Visible:    true,
		worldDirty: true,
	}
}

// NewMeshNode is a shorthand for a named node carrying mesh.
func NewMeshNode(name string, mesh *Mesh) *Node {
	n := NewNode(name)
	n.Mesh = mesh
	return n
}

// AddChild reparents child under n.
func (n *Node) AddChild(child *Node) {
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	child.Parent = n
	n.Children = append(n.Children, child)
	child.MarkWorldMatrixDirty()
}

func (n *Node) RemoveChild(child *Node) {
	i := slices.Index(n.Children, child)
	if i < 0 {
		return
	}
	n.Children = slices.Delete(n.Children, i, i+1)
	child.Parent = nil
	child.MarkWorldMatrixDirty()
}

// GetWorldMatrix returns local followed by the parent chain.
func (n *Node) GetWorldMatrix() math.Mat4 {
	if !n.worldDirty {
		return n.world
	}
	n.world = n.Transform.GetMatrix()
	if n.Parent != nil {
		n.world = n.world.Mul(n.Parent.GetWorldMatrix())
	}
	n.worldDirty = false
	return n.world
}

// WorldPosition returns the node origin in world space.
func (n *Node) WorldPosition() math.Vec3 {
	return n.GetWorldMatrix().Position()
}

func (n *Node) MarkWorldMatrixDirty() {
	for m := range n.All() {
		m.worldDirty = true
	}
}

func (n *Node) SetPosition(pos math.Vec3) {
	n.Transform.Position = pos
	n.MarkWorldMatrixDirty()
}

func (n *Node) SetRotation(rot math.Quaternion) {
	n.Transform.Rotation = rot
	n.MarkWorldMatrixDirty()
}

// Rotate applies a rotation of angle radians around a local axis.
func (n *Node) Rotate(axis math.Vec3, angle float32) {
	q := math.QuaternionFromAxisAngle(axis, angle)
	n.SetRotation(n.Transform.Rotation.Mul(q).Normalize())
}

// Update runs OnUpdate depth first, parents before children.
func (n *Node) Update(time, delta float32) {
	for m := range n.All() {
		if m.OnUpdate != nil {
			m.OnUpdate(m, time, delta)
		}
	}
}

// All yields n and its descendants in depth-first pre-order.
func (n *Node) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n.walk(false, yield)
	}
}

// VisibleNodes yields the nodes whose whole ancestry, themselves included, is
// visible.
func (n *Node) VisibleNodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n.walk(true, yield)
	}
}

func (n *Node) walk(visibleOnly bool, yield func(*Node) bool) bool {
	if visibleOnly && !n.Visible {
		return true
	}
	if !yield(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.walk(visibleOnly, yield) {
			return false
		}
	}
	return true
}
