package scene

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chewxy/math32"

	"render-pipeline/core"
	"render-pipeline/math"
)

type objCorner struct{ v, vt, vn int }

type objGroup struct {
	name     string
	material string
	tris     [][3]objCorner
}

// objParser accumulates the shared attribute pools of one .obj stream.
type objParser struct {
	positions []math.Vec3
	normals   []math.Vec3
	uvs       []math.Vec2
	materials map[string]*Material
	groups    []*objGroup
	cur       *objGroup
	dir       string
	line      int
}

// LoadOBJ reads a Wavefront .obj file and returns one mesh per object or
// group. Material libraries are resolved relative to the file.
func LoadOBJ(path string) ([]*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("obj: %w", err)
	}
	defer f.Close()
	meshes, err := ParseOBJ(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("obj %s: %w", path, err)
	}
	return meshes, nil
}

// ParseOBJ parses .obj text. dir is where mtllib references are looked up;
// an empty dir ignores them.
func ParseOBJ(r io.Reader, dir string) ([]*Mesh, error) {
	p := &objParser{materials: map[string]*Material{}, dir: dir}
	p.cur = &objGroup{name: "default"}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p.line++
		if err := p.parseLine(sc.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", p.line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	p.flush()
	if len(p.groups) == 0 {
		return nil, fmt.Errorf("no faces")
	}

	meshes := make([]*Mesh, 0, len(p.groups))
	for _, g := range p.groups {
		m, err := p.build(g)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.name, err)
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

func (p *objParser) parseLine(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	args := fields[1:]

	switch fields[0] {
	case "v":
		v, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		p.positions = append(p.positions, math.NewVec3(v[0], v[1], v[2]))
	case "vn":
		v, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		p.normals = append(p.normals, math.NewVec3(v[0], v[1], v[2]).Normalize())
	case "vt":
		v, err := parseFloats(args, 2)
		if err != nil {
			return err
		}
		p.uvs = append(p.uvs, math.Vec2{X: v[0], Y: v[1]})
	case "o", "g":
		p.flush()
		name := "default"
		if len(args) > 0 {
			name = args[0]
		}
		p.cur = &objGroup{name: name, material: p.cur.material}
	case "usemtl":
		if len(args) == 0 {
			return fmt.Errorf("usemtl without a name")
		}
		if len(p.cur.tris) > 0 && p.cur.material != args[0] {
			// one material per mesh
			name := p.cur.name
			p.flush()
			p.cur = &objGroup{name: name}
		}
		p.cur.material = args[0]
	case "mtllib":
		if p.dir == "" || len(args) == 0 {
			return nil
		}
		mats, err := LoadMTL(filepath.Join(p.dir, args[0]))
		if err != nil {
			core.Logger().Warn("obj: material library skipped", "file", args[0], "err", err)
			return nil
		}
		for k, v := range mats {
			p.materials[k] = v
		}
	case "f":
		if len(args) < 3 {
			return fmt.Errorf("face with %d vertices", len(args))
		}
		corners := make([]objCorner, len(args))
		for i, tok := range args {
			c, err := p.corner(tok)
			if err != nil {
				return err
			}
			corners[i] = c
		}
		// fan
		for i := 1; i+1 < len(corners); i++ {
			p.cur.tris = append(p.cur.tris, [3]objCorner{corners[0], corners[i], corners[i+1]})
		}
	}
	return nil
}

func (p *objParser) flush() {
	if p.cur != nil && len(p.cur.tris) > 0 {
		p.groups = append(p.groups, p.cur)
	}
}

// corner resolves one "v", "v/vt", "v//vn" or "v/vt/vn" token to 0-based
// indices, -1 when absent. Negative indices count back from the current end
// of each pool.
func (p *objParser) corner(tok string) (objCorner, error) {
	parts := strings.Split(tok, "/")
	if len(parts) > 3 {
		return objCorner{}, fmt.Errorf("bad face vertex %q", tok)
	}
	pools := [3]int{len(p.positions), len(p.uvs), len(p.normals)}
	idx := [3]int{-1, -1, -1}
	for i, s := range parts {
		if s == "" {
			if i == 0 {
				return objCorner{}, fmt.Errorf("bad face vertex %q", tok)
			}
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return objCorner{}, fmt.Errorf("bad face vertex %q: %w", tok, err)
		}
		switch {
		case n > 0:
			n--
		case n < 0:
			n += pools[i]
		default:
			return objCorner{}, fmt.Errorf("zero index in %q", tok)
		}
		if n < 0 || n >= pools[i] {
			return objCorner{}, fmt.Errorf("index out of range in %q", tok)
		}
		idx[i] = n
	}
	return objCorner{v: idx[0], vt: idx[1], vn: idx[2]}, nil
}

// build deduplicates corners into an indexed mesh. Missing normals are
// generated from the faces.
func (p *objParser) build(g *objGroup) (*Mesh, error) {
	seen := map[objCorner]uint32{}
	var vertices []core.Vertex
	indices := make([]uint32, 0, len(g.tris)*3)
	missingNormals := false

	for _, tri := range g.tris {
		for _, c := range tri {
			if idx, ok := seen[c]; ok {
				indices = append(indices, idx)
				continue
			}
			v := core.Vertex{Position: p.positions[c.v], Color: core.ColorWhite}
			if c.vt >= 0 {
				v.UV = p.uvs[c.vt]
			}
			if c.vn >= 0 {
				v.Normal = p.normals[c.vn]
			} else {
				missingNormals = true
			}
			idx := uint32(len(vertices))
			seen[c] = idx
			vertices = append(vertices, v)
			indices = append(indices, idx)
		}
	}
	if missingNormals {
		smoothNormals(vertices, indices)
	}

	mesh := CreateMeshFromData(g.name, vertices, indices)
	mesh.MaterialName = g.material
	if m, ok := p.materials[g.material]; ok {
		mesh.Material = m
	} else {
		mesh.Material = DefaultMaterial()
	}
	return mesh, nil
}

// smoothNormals averages area-weighted face normals per vertex.
func smoothNormals(vertices []core.Vertex, indices []uint32) {
	acc := make([]math.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		n := vertices[b].Position.Sub(vertices[a].Position).Cross(vertices[c].Position.Sub(vertices[a].Position))
		acc[a] = acc[a].Add(n)
		acc[b] = acc[b].Add(n)
		acc[c] = acc[c].Add(n)
	}
	for i := range vertices {
		if acc[i].Length() > 0 {
			vertices[i].Normal = acc[i].Normalize()
		} else {
			vertices[i].Normal = math.Vec3Up
		}
	}
}

// LoadMTL reads a material library. Ke sets the emissive colour, which is
// what the bloom pass picks up.
func LoadMTL(path string) (map[string]*Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dir := filepath.Dir(path)
	mats := map[string]*Material{}
	var cur *Material
	line := 0

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if fields[0] == "newmtl" {
			if len(fields) < 2 {
				return nil, fmt.Errorf("%s:%d: newmtl without a name", path, line)
			}
			cur = DefaultMaterial()
			cur.Name = fields[1]
			mats[cur.Name] = cur
			continue
		}
		if cur == nil {
			continue
		}
		switch fields[0] {
		case "Kd", "Ks", "Ke":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			c := core.Color{R: v[0], G: v[1], B: v[2], A: 1}
			switch fields[0] {
			case "Kd":
				cur.Albedo = c
			case "Ks":
				cur.Specular = c
			default:
				cur.Emissive = c
			}
		case "Ns":
			v, err := parseFloats(fields[1:], 1)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			cur.Shininess = math32.Max(1, v[0])
		case "map_Kd":
			if len(fields) < 2 {
				continue
			}
			tex, err := LoadTexture(filepath.Join(dir, fields[len(fields)-1]))
			if err != nil {
				core.Logger().Warn("mtl: texture skipped", "material", cur.Name, "err", err)
				continue
			}
			cur.AlbedoTexture = tex
		}
	}
	return mats, sc.Err()
}

func parseFloats(args []string, n int) ([]float32, error) {
	if len(args) < n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(args))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}
