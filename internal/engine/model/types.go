// Package model holds the skinned mesh data model: geometry, skeleton,
// animation clips, and the pose evaluator that turns them into bone matrices.
package model

import "github.com/go-gl/mathgl/mgl32"

// MaxBones is the size of the bone matrix array uploaded to the GPU.
const MaxBones = 128

// Vertex is a single skinned mesh vertex.
type Vertex struct {
	Position  mgl32.Vec3
	TexCoord  mgl32.Vec2
	Normal    mgl32.Vec3
	Tangent   mgl32.Vec3
	Bitangent mgl32.Vec3
	BoneIDs   [4]uint32
	Weights   [4]float32
}

// Mesh holds geometry ready for GPU upload, plus the skeleton and animation
// clips driving it. The generation counter tells the renderer's cache when
// vertex or index data changed and a re-upload is needed.
type Mesh struct {
	Vertices   []Vertex
	Indices    []uint32
	Skeleton   *Skeleton
	Animations []*Animation

	// Correction re-orients the model into the viewer's coordinate system
	// (e.g. Z-up sources). Identity when no correction applies.
	Correction mgl32.Mat4

	generation uint64
}

// NewMesh creates a mesh with an identity correction matrix and generation 1.
func NewMesh(vertices []Vertex, indices []uint32) *Mesh {
	return &Mesh{
		Vertices:   vertices,
		Indices:    indices,
		Correction: mgl32.Ident4(),
		generation: 1,
	}
}

// Generation returns the current geometry generation counter.
func (m *Mesh) Generation() uint64 {
	return m.generation
}

// Bump marks the geometry as changed so the next frame re-uploads it.
func (m *Mesh) Bump() {
	m.generation++
}

// Bounds returns the axis-aligned bounding box of the bind-pose vertices.
func (m *Mesh) Bounds() (min, max mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}
	min = m.Vertices[0].Position
	max = min
	for i := range m.Vertices {
		p := m.Vertices[i].Position
		for c := 0; c < 3; c++ {
			if p[c] < min[c] {
				min[c] = p[c]
			}
			if p[c] > max[c] {
				max[c] = p[c]
			}
		}
	}
	return min, max
}

// Texture is a decoded RGBA8 image.
type Texture struct {
	Width  int
	Height int
	Pixels []byte // Width*Height*4 bytes, row-major
}

// DefaultDiffuse returns the 1x1 neutral gray texture substituted when a
// model carries no usable diffuse image.
func DefaultDiffuse() *Texture {
	return &Texture{Width: 1, Height: 1, Pixels: []byte{128, 128, 128, 255}}
}

// DefaultNormal returns the 1x1 flat normal map (+Z in tangent space).
func DefaultNormal() *Texture {
	return &Texture{Width: 1, Height: 1, Pixels: []byte{128, 128, 255, 255}}
}
