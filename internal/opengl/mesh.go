package opengl

import (
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-pipeline/core"
	"render-pipeline/scene"
)

// glMesh holds the buffer objects of an uploaded mesh.
type glMesh struct {
	vao        uint32
	vbo        uint32
	ebo        uint32
	count      int32
	hasIndices bool
}

// ensureUploaded uploads vertex/index data if not already done.
func (d *Device) ensureUploaded(mesh *scene.Mesh) *glMesh {
	if m, ok := d.meshes[mesh]; ok {
		return m
	}
	if len(mesh.Vertices) == 0 {
		return nil
	}

	stride := int32(unsafe.Sizeof(core.Vertex{}))
	m := &glMesh{hasIndices: len(mesh.Indices) > 0}
	if m.hasIndices {
		m.count = int32(len(mesh.Indices))
	} else {
		m.count = int32(len(mesh.Vertices))
	}

	gl.GenVertexArrays(1, &m.vao)
	gl.GenBuffers(1, &m.vbo)
	gl.BindVertexArray(m.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(mesh.Vertices)*int(stride), gl.Ptr(mesh.Vertices), gl.STATIC_DRAW)

	var v core.Vertex
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, stride, gl.PtrOffset(int(unsafe.Offsetof(v.Position))))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, stride, gl.PtrOffset(int(unsafe.Offsetof(v.Normal))))
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, stride, gl.PtrOffset(int(unsafe.Offsetof(v.UV))))
	gl.EnableVertexAttribArray(3)
	gl.VertexAttribPointer(3, 4, gl.FLOAT, false, stride, gl.PtrOffset(int(unsafe.Offsetof(v.Color))))

	if m.hasIndices {
		gl.GenBuffers(1, &m.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(mesh.Indices)*4, gl.Ptr(mesh.Indices), gl.STATIC_DRAW)
	}

	gl.BindVertexArray(0)
	d.meshes[mesh] = m
	return m
}

func (m *glMesh) draw() {
	gl.BindVertexArray(m.vao)
	if m.hasIndices {
		gl.DrawElements(gl.TRIANGLES, m.count, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, m.count)
	}
	gl.BindVertexArray(0)
}

func (m *glMesh) free() {
	if m.ebo != 0 {
		gl.DeleteBuffers(1, &m.ebo)
	}
	gl.DeleteBuffers(1, &m.vbo)
	gl.DeleteVertexArrays(1, &m.vao)
}

// ReleaseMesh frees the GPU buffers of mesh; the next draw re-uploads it.
func (d *Device) ReleaseMesh(mesh *scene.Mesh) {
	if m, ok := d.meshes[mesh]; ok {
		m.free()
		delete(d.meshes, mesh)
	}
}
