package scene

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"render-pipeline/core"
	"render-pipeline/math"
)

// Extensions read by the loader. Everything else is ignored.
const (
	extUnlit            = "KHR_materials_unlit"
	extEmissiveStrength = "KHR_materials_emissive_strength"
	extTextureTransform = "KHR_texture_transform"
)

// GLTFResult is a loaded glTF scene.
type GLTFResult struct {
	Roots    []*Node    // add each with Scene.AddNode
	Textures []*Texture // decoded images, in document order
}

// gltfLoader converts one document. Slices are indexed like the document's
// own arrays; nil entries failed to load and were logged.
type gltfLoader struct {
	doc       *gltf.Document
	dir       string
	images    []*Texture
	materials []*Material
	meshes    [][]*Mesh // per glTF mesh, one per primitive
	nodes     []*Node
}

// LoadGLTF opens a .gltf or .glb file. Metallic-roughness materials are
// mapped onto the Phong model; emissive factors, strengths and textures
// are kept since they drive the bloom pass.
func LoadGLTF(path string) (*GLTFResult, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	l := &gltfLoader{doc: doc, dir: filepath.Dir(path)}
	l.loadImages()
	l.loadMaterials()
	l.loadMeshes()
	l.loadNodes()

	res := &GLTFResult{Roots: l.roots()}
	for _, t := range l.images {
		if t != nil {
			res.Textures = append(res.Textures, t)
		}
	}
	if len(res.Roots) == 0 {
		return nil, fmt.Errorf("gltf %q: no nodes", path)
	}
	return res, nil
}

func (l *gltfLoader) loadImages() {
	l.images = make([]*Texture, len(l.doc.Textures))
	log := core.Logger()
	for i, gt := range l.doc.Textures {
		if gt.Source == nil || *gt.Source >= len(l.doc.Images) {
			continue
		}
		img := l.doc.Images[*gt.Source]
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("gltf_img_%d", *gt.Source)
		}

		var (
			tex *Texture
			err error
		)
		switch {
		case img.BufferView != nil:
			var raw []byte
			raw, err = modeler.ReadBufferView(l.doc, l.doc.BufferViews[*img.BufferView])
			if err == nil {
				tex, err = decodeImageBytes(name, raw)
			}
		case img.IsEmbeddedResource():
			var raw []byte
			raw, err = img.MarshalData()
			if err == nil {
				tex, err = decodeImageBytes(name, raw)
			}
		case img.URI != "":
			tex, err = LoadTexture(filepath.Join(l.dir, img.URI))
		}
		if err != nil {
			log.Warn("gltf: texture skipped", "texture", i, "image", name, "err", err)
			continue
		}
		l.images[i] = tex
	}
}

// texture returns the texture behind info, applying its UV transform.
// Textures with a transform are copied so that sharing the image between
// materials does not share the transform.
func (l *gltfLoader) texture(info *gltf.TextureInfo) *Texture {
	if info == nil || info.Index >= len(l.images) || l.images[info.Index] == nil {
		return nil
	}
	tex := l.images[info.Index]
	var tt struct {
		Offset   [2]float32  `json:"offset"`
		Rotation float32     `json:"rotation"`
		Scale    *[2]float32 `json:"scale"`
	}
	if !extension(info.Extensions, extTextureTransform, &tt) {
		return tex
	}
	cp := *tex
	cp.Offset = math.Vec2{X: tt.Offset[0], Y: tt.Offset[1]}
	cp.Rotation = tt.Rotation
	if tt.Scale != nil {
		cp.Repeat = math.Vec2{X: tt.Scale[0], Y: tt.Scale[1]}
	}
	return &cp
}

func (l *gltfLoader) loadMaterials() {
	l.materials = make([]*Material, len(l.doc.Materials))
	for i, gm := range l.doc.Materials {
		mat := DefaultMaterial()
		mat.Name = gm.Name
		if mat.Name == "" {
			mat.Name = fmt.Sprintf("gltf_mat_%d", i)
		}

		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			mat.Albedo = core.Color{R: float32(cf[0]), G: float32(cf[1]), B: float32(cf[2]), A: float32(cf[3])}
			mat.AlbedoTexture = l.texture(pbr.BaseColorTexture)

			// smooth surfaces get tight highlights, metals bright ones
			rough := float32(pbr.RoughnessFactorOrDefault())
			metal := float32(pbr.MetallicFactorOrDefault())
			mat.Shininess = (1-rough)*(1-rough)*128 + 1
			spec := 0.04 + metal*0.66
			mat.Specular = core.Color{R: spec, G: spec, B: spec, A: 1}
		}

		ef := gm.EmissiveFactor
		strength := float32(1)
		var es struct {
			EmissiveStrength float32 `json:"emissiveStrength"`
		}
		if extension(gm.Extensions, extEmissiveStrength, &es) {
			strength = es.EmissiveStrength
		}
		mat.Emissive = core.Color{R: float32(ef[0]), G: float32(ef[1]), B: float32(ef[2]), A: 1}.Scale(strength)
		if gm.EmissiveTexture != nil && mat.AlbedoTexture == nil && mat.Emissive.Vec3().Length() > 0 {
			// no separate emissive slot; a glowing surface shows its emissive map
			mat.AlbedoTexture = l.texture(gm.EmissiveTexture)
		}

		if _, ok := gm.Extensions[extUnlit]; ok {
			mat.Unlit = true
		}
		l.materials[i] = mat
	}
}

func (l *gltfLoader) loadMeshes() {
	l.meshes = make([][]*Mesh, len(l.doc.Meshes))
	for mi, gm := range l.doc.Meshes {
		for pi, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				core.Logger().Warn("gltf: primitive skipped", "mesh", mi, "primitive", pi, "mode", prim.Mode)
				continue
			}
			m, err := l.primitive(gm.Name, pi, prim)
			if err != nil {
				core.Logger().Warn("gltf: primitive skipped", "mesh", mi, "primitive", pi, "err", err)
				continue
			}
			if prim.Material != nil && *prim.Material < len(l.materials) {
				m.Material = l.materials[*prim.Material]
			}
			l.meshes[mi] = append(l.meshes[mi], m)
		}
	}
}

func (l *gltfLoader) primitive(meshName string, idx int, prim *gltf.Primitive) (*Mesh, error) {
	doc := l.doc
	name := fmt.Sprintf("%s_p%d", meshName, idx)
	if meshName == "" {
		name = fmt.Sprintf("prim_%d", idx)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	var normals [][3]float32
	if i, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[i], nil); err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
	}
	var uvs [][2]float32
	if i, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[i], nil); err != nil {
			return nil, fmt.Errorf("uvs: %w", err)
		}
	}

	verts := make([]core.Vertex, len(positions))
	for i, p := range positions {
		v := core.Vertex{Position: math.NewVec3(p[0], p[1], p[2]), Color: core.ColorWhite}
		if i < len(normals) {
			v.Normal = math.NewVec3(normals[i][0], normals[i][1], normals[i][2])
		}
		if i < len(uvs) {
			v.UV = math.Vec2{X: uvs[i][0], Y: uvs[i][1]}
		}
		verts[i] = v
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	}
	if len(normals) < len(positions) {
		tri := indices
		if tri == nil {
			tri = make([]uint32, len(verts))
			for i := range tri {
				tri[i] = uint32(i)
			}
		}
		smoothNormals(verts, tri)
	}
	return CreateMeshFromData(name, verts, indices), nil
}

func (l *gltfLoader) loadNodes() {
	l.nodes = make([]*Node, len(l.doc.Nodes))
	for i, gn := range l.doc.Nodes {
		name := gn.Name
		if name == "" {
			name = fmt.Sprintf("node_%d", i)
		}
		n := NewNode(name)
		if gn.Matrix != [16]float64{} && gn.Matrix != gltf.DefaultMatrix {
			n.Transform = transformFromMatrix(gn.Matrix)
		} else {
			t, r, s := gn.TranslationOrDefault(), gn.RotationOrDefault(), gn.ScaleOrDefault()
			n.Transform = core.Transform{
				Position: math.NewVec3(float32(t[0]), float32(t[1]), float32(t[2])),
				Rotation: math.Quaternion{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])},
				Scale:    math.NewVec3(float32(s[0]), float32(s[1]), float32(s[2])),
			}
		}
		n.MarkWorldMatrixDirty()

		if gn.Mesh != nil && *gn.Mesh < len(l.meshes) {
			prims := l.meshes[*gn.Mesh]
			if len(prims) == 1 {
				n.Mesh = prims[0]
			} else {
				for pi, p := range prims {
					n.AddChild(NewMeshNode(fmt.Sprintf("%s_prim%d", name, pi), p))
				}
			}
		}
		l.nodes[i] = n
	}

	for i, gn := range l.doc.Nodes {
		for _, c := range gn.Children {
			if c < len(l.nodes) && c != i {
				l.nodes[i].AddChild(l.nodes[c])
			}
		}
	}
}

// roots returns the default scene's nodes, or every parentless node when
// the document names no scene.
func (l *gltfLoader) roots() []*Node {
	var out []*Node
	if s := l.doc.Scene; s != nil && *s < len(l.doc.Scenes) {
		for _, i := range l.doc.Scenes[*s].Nodes {
			if i < len(l.nodes) {
				out = append(out, l.nodes[i])
			}
		}
		return out
	}
	for _, n := range l.nodes {
		if n.Parent == nil {
			out = append(out, n)
		}
	}
	return out
}

// transformFromMatrix splits a column-major glTF matrix into TRS. The
// layout matches math.Mat4, so the columns are the basis rows here.
func transformFromMatrix(m [16]float64) core.Transform {
	var mat math.Mat4
	for i := range 16 {
		mat[i/4][i%4] = float32(m[i])
	}
	var scale [3]float32
	for i := range 3 {
		row := math.NewVec3(mat[i][0], mat[i][1], mat[i][2])
		scale[i] = row.Length()
		if scale[i] > 0 {
			mat[i][0] /= scale[i]
			mat[i][1] /= scale[i]
			mat[i][2] /= scale[i]
		}
	}
	// a mirrored basis keeps its handedness in the scale
	if math.NewVec3(mat[0][0], mat[0][1], mat[0][2]).Cross(math.NewVec3(mat[1][0], mat[1][1], mat[1][2])).
		Dot(math.NewVec3(mat[2][0], mat[2][1], mat[2][2])) < 0 {
		scale[0] = -scale[0]
		mat[0][0], mat[0][1], mat[0][2] = -mat[0][0], -mat[0][1], -mat[0][2]
	}
	return core.Transform{
		Position: math.NewVec3(mat[3][0], mat[3][1], mat[3][2]),
		Rotation: math.QuaternionFromMat4(mat),
		Scale:    math.NewVec3(scale[0], scale[1], scale[2]),
	}
}

// extension decodes the named extension into v. Extensions without a
// registered decoder arrive as raw JSON.
func extension(exts gltf.Extensions, name string, v any) bool {
	raw, ok := exts[name]
	if !ok {
		return false
	}
	var b []byte
	switch r := raw.(type) {
	case json.RawMessage:
		b = r
	case []byte:
		b = r
	default:
		var err error
		if b, err = json.Marshal(r); err != nil {
			return false
		}
	}
	return json.Unmarshal(b, v) == nil
}

func decodeImageBytes(name string, data []byte) (*Texture, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return NewTextureFromImage(name, img), nil
}
