package assets

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/sfenley/meshterm/internal/engine/model"
	"github.com/sfenley/meshterm/internal/logger"
	"go.uber.org/zap"
)

// LoadMesh reads a glTF 2.0 file (.gltf or .glb) and flattens its first
// skinned mesh into renderable geometry, a skeleton and animation clips.
// Models without a skin load as static geometry with an empty rig.
func LoadMesh(path string) (*model.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return meshFromDocument(doc, path)
}

func meshFromDocument(doc *gltf.Document, path string) (*model.Mesh, error) {
	meshNode := findMeshNode(doc)
	if meshNode < 0 {
		return nil, fmt.Errorf("%s: no mesh in document", path)
	}
	node := doc.Nodes[meshNode]

	vertices, indices, err := readGeometry(doc, doc.Meshes[*node.Mesh])
	if err != nil {
		return nil, fmt.Errorf("reading geometry from %s: %w", path, err)
	}

	mesh := model.NewMesh(vertices, indices)

	skeleton, nodeIndex, err := buildSkeleton(doc, node.Skin)
	if err != nil {
		return nil, fmt.Errorf("building skeleton from %s: %w", path, err)
	}
	mesh.Skeleton = skeleton

	mesh.Animations, err = readAnimations(doc, nodeIndex)
	if err != nil {
		return nil, fmt.Errorf("reading animations from %s: %w", path, err)
	}

	logger.Info("model loaded",
		zap.String("path", path),
		zap.Int("vertices", len(vertices)),
		zap.Int("indices", len(indices)),
		zap.Int("bones", len(skeleton.Bones)),
		zap.Int("clips", len(mesh.Animations)))

	return mesh, nil
}

// findMeshNode returns the index of the first node carrying a mesh,
// preferring a skinned one.
func findMeshNode(doc *gltf.Document) int {
	best := -1
	for i, n := range doc.Nodes {
		if n.Mesh == nil {
			continue
		}
		if n.Skin != nil {
			return i
		}
		if best < 0 {
			best = i
		}
	}
	return best
}

func readGeometry(doc *gltf.Document, mesh *gltf.Mesh) ([]model.Vertex, []uint32, error) {
	var vertices []model.Vertex
	var indices []uint32

	for _, prim := range mesh.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			logger.Warn("skipping non-triangle primitive", zap.String("mesh", mesh.Name))
			continue
		}

		posAcc, ok := prim.Attributes["POSITION"]
		if !ok {
			return nil, nil, fmt.Errorf("primitive of mesh %q has no positions", mesh.Name)
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[posAcc], nil)
		if err != nil {
			return nil, nil, fmt.Errorf("positions: %w", err)
		}

		base := uint32(len(vertices))
		verts := make([]model.Vertex, len(positions))
		for i, p := range positions {
			verts[i].Position = mgl32.Vec3(p)
			verts[i].Normal = mgl32.Vec3{0, 1, 0}
			verts[i].Weights = [4]float32{1, 0, 0, 0}
		}

		if acc, ok := prim.Attributes["NORMAL"]; ok {
			normals, err := modeler.ReadNormal(doc, doc.Accessors[acc], nil)
			if err != nil {
				return nil, nil, fmt.Errorf("normals: %w", err)
			}
			for i := range verts {
				verts[i].Normal = mgl32.Vec3(normals[i])
			}
		}
		if acc, ok := prim.Attributes["TEXCOORD_0"]; ok {
			uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[acc], nil)
			if err != nil {
				return nil, nil, fmt.Errorf("texcoords: %w", err)
			}
			for i := range verts {
				verts[i].TexCoord = mgl32.Vec2(uvs[i])
			}
		}
		if acc, ok := prim.Attributes["TANGENT"]; ok {
			tangents, err := modeler.ReadTangent(doc, doc.Accessors[acc], nil)
			if err != nil {
				return nil, nil, fmt.Errorf("tangents: %w", err)
			}
			for i := range verts {
				t := mgl32.Vec3{tangents[i][0], tangents[i][1], tangents[i][2]}
				verts[i].Tangent = t
				verts[i].Bitangent = verts[i].Normal.Cross(t).Mul(tangents[i][3])
			}
		} else {
			for i := range verts {
				verts[i].Tangent, verts[i].Bitangent = tangentBasis(verts[i].Normal)
			}
		}
		if acc, ok := prim.Attributes["JOINTS_0"]; ok {
			joints, err := modeler.ReadJoints(doc, doc.Accessors[acc], nil)
			if err != nil {
				return nil, nil, fmt.Errorf("joints: %w", err)
			}
			for i := range verts {
				for j := 0; j < 4; j++ {
					verts[i].BoneIDs[j] = uint32(joints[i][j])
				}
			}
		}
		if acc, ok := prim.Attributes["WEIGHTS_0"]; ok {
			weights, err := modeler.ReadWeights(doc, doc.Accessors[acc], nil)
			if err != nil {
				return nil, nil, fmt.Errorf("weights: %w", err)
			}
			for i := range verts {
				verts[i].Weights = weights[i]
			}
		}

		vertices = append(vertices, verts...)

		if prim.Indices != nil {
			primIndices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return nil, nil, fmt.Errorf("indices: %w", err)
			}
			for _, idx := range primIndices {
				indices = append(indices, base+idx)
			}
		} else {
			for i := range verts {
				indices = append(indices, base+uint32(i))
			}
		}
	}

	if len(vertices) == 0 {
		return nil, nil, fmt.Errorf("mesh %q has no triangle geometry", mesh.Name)
	}
	return vertices, indices, nil
}

// tangentBasis picks an arbitrary tangent frame for a normal when the model
// carries none. Normal mapping degrades but stays stable.
func tangentBasis(n mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	up := mgl32.Vec3{0, 1, 0}
	if n.Y() > 0.99 || n.Y() < -0.99 {
		up = mgl32.Vec3{1, 0, 0}
	}
	t := up.Cross(n).Normalize()
	return t, n.Cross(t)
}

// buildSkeleton flattens the document's node hierarchy into a parent-first
// array and attaches the skin's bones. It returns the skeleton plus a map
// from glTF node index to flat-array name, used to resolve animation
// targets.
func buildSkeleton(doc *gltf.Document, skin *uint32) (*model.Skeleton, map[uint32]string, error) {
	names := make(map[uint32]string, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if n.Name != "" {
			names[uint32(i)] = n.Name
		} else {
			names[uint32(i)] = fmt.Sprintf("node_%d", i)
		}
	}

	var nodes []model.BoneNode
	flatIndex := make(map[uint32]int, len(doc.Nodes))

	var walk func(idx uint32, parent int)
	walk = func(idx uint32, parent int) {
		if _, seen := flatIndex[idx]; seen {
			return
		}
		n := doc.Nodes[idx]
		local := nodeLocalMatrix(n)
		pos, rot, scale := decompose(local, n)

		self := len(nodes)
		flatIndex[idx] = self
		nodes = append(nodes, model.BoneNode{
			Name:      names[idx],
			Transform: local,
			Position:  pos,
			Rotation:  rot,
			Scale:     scale,
			Parent:    parent,
		})
		if parent >= 0 {
			nodes[parent].Children = append(nodes[parent].Children, self)
		}
		for _, child := range n.Children {
			walk(child, self)
		}
	}

	for _, scene := range doc.Scenes {
		for _, root := range scene.Nodes {
			walk(root, -1)
		}
	}
	// Nodes reachable from no scene can still be animation targets.
	for i := range doc.Nodes {
		walk(uint32(i), -1)
	}

	var bones []model.Bone
	if skin != nil {
		s := doc.Skins[*skin]
		offsets, err := readInverseBind(doc, s)
		if err != nil {
			return nil, nil, err
		}
		if len(s.Joints) > model.MaxBones {
			return nil, nil, fmt.Errorf("skin has %d joints, limit is %d", len(s.Joints), model.MaxBones)
		}
		bones = make([]model.Bone, len(s.Joints))
		for i, joint := range s.Joints {
			bones[i] = model.Bone{
				Name:   names[joint],
				Offset: offsets[i],
				Index:  i,
			}
		}
	}

	// glTF inverse bind matrices already map mesh space to joint space, so
	// no extra root correction applies.
	return model.NewSkeleton(bones, nodes, mgl32.Ident4()), names, nil
}

func readInverseBind(doc *gltf.Document, skin *gltf.Skin) ([]mgl32.Mat4, error) {
	offsets := make([]mgl32.Mat4, len(skin.Joints))
	for i := range offsets {
		offsets[i] = mgl32.Ident4()
	}
	if skin.InverseBindMatrices == nil {
		return offsets, nil
	}

	raw, err := modeler.ReadAccessor(doc, doc.Accessors[*skin.InverseBindMatrices], nil)
	if err != nil {
		return nil, fmt.Errorf("inverse bind matrices: %w", err)
	}
	mats, ok := raw.([][4][4]float32)
	if !ok {
		return nil, fmt.Errorf("inverse bind matrices have unexpected type %T", raw)
	}
	for i := range offsets {
		if i >= len(mats) {
			break
		}
		var m mgl32.Mat4
		for col := 0; col < 4; col++ {
			for row := 0; row < 4; row++ {
				m[col*4+row] = mats[i][col][row]
			}
		}
		offsets[i] = m
	}
	return offsets, nil
}

// nodeLocalMatrix returns the node's local transform, composing TRS when no
// explicit matrix is authored.
func nodeLocalMatrix(n *gltf.Node) mgl32.Mat4 {
	m := mgl32.Mat4(n.Matrix)
	if m != (mgl32.Mat4{}) && m != mgl32.Ident4() {
		return m
	}

	t := mgl32.Translate3D(n.Translation[0], n.Translation[1], n.Translation[2])
	q := mgl32.Quat{
		W: n.Rotation[3],
		V: mgl32.Vec3{n.Rotation[0], n.Rotation[1], n.Rotation[2]},
	}
	if q.Len() == 0 {
		q = mgl32.QuatIdent()
	}
	s := n.Scale
	if s == ([3]float32{}) {
		s = [3]float32{1, 1, 1}
	}
	return t.Mul4(q.Normalize().Mat4()).Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// decompose extracts bind-pose TRS components, preferring the authored TRS
// fields over matrix decomposition.
func decompose(local mgl32.Mat4, n *gltf.Node) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	m := mgl32.Mat4(n.Matrix)
	if m == (mgl32.Mat4{}) || m == mgl32.Ident4() {
		pos := mgl32.Vec3(n.Translation)
		rot := mgl32.Quat{
			W: n.Rotation[3],
			V: mgl32.Vec3{n.Rotation[0], n.Rotation[1], n.Rotation[2]},
		}
		if rot.Len() == 0 {
			rot = mgl32.QuatIdent()
		}
		scale := mgl32.Vec3(n.Scale)
		if scale == (mgl32.Vec3{}) {
			scale = mgl32.Vec3{1, 1, 1}
		}
		return pos, rot.Normalize(), scale
	}

	pos := mgl32.Vec3{local[12], local[13], local[14]}
	scale := mgl32.Vec3{
		mgl32.Vec3{local[0], local[1], local[2]}.Len(),
		mgl32.Vec3{local[4], local[5], local[6]}.Len(),
		mgl32.Vec3{local[8], local[9], local[10]}.Len(),
	}
	rotOnly := local
	for col := 0; col < 3; col++ {
		s := scale[col]
		if s == 0 {
			continue
		}
		for row := 0; row < 3; row++ {
			rotOnly[col*4+row] /= s
		}
	}
	rotOnly[12], rotOnly[13], rotOnly[14] = 0, 0, 0
	return pos, mgl32.Mat4ToQuat(rotOnly).Normalize(), scale
}

// readAnimations converts every glTF animation into a clip. glTF keyframe
// times are seconds, so clips carry a rate of one tick per second.
func readAnimations(doc *gltf.Document, nodeNames map[uint32]string) ([]*model.Animation, error) {
	var clips []*model.Animation

	for ai, anim := range doc.Animations {
		tracks := make(map[string]*model.BoneTrack)
		track := func(node uint32) *model.BoneTrack {
			name := nodeNames[node]
			if t, ok := tracks[name]; ok {
				return t
			}
			t := &model.BoneTrack{BoneName: name}
			tracks[name] = t
			return t
		}

		var duration float64
		for _, ch := range anim.Channels {
			if ch.Target.Node == nil {
				continue
			}
			if ch.Target.Path == gltf.TRSWeights {
				continue // morph targets are not supported
			}
			if ch.Sampler == nil {
				continue
			}
			sampler := anim.Samplers[*ch.Sampler]
			if sampler.Input == nil || sampler.Output == nil {
				continue
			}

			times, err := readScalarTimes(doc, *sampler.Input)
			if err != nil {
				return nil, fmt.Errorf("animation %d input: %w", ai, err)
			}
			for _, t := range times {
				if float64(t) > duration {
					duration = float64(t)
				}
			}

			out, err := modeler.ReadAccessor(doc, doc.Accessors[*sampler.Output], nil)
			if err != nil {
				return nil, fmt.Errorf("animation %d output: %w", ai, err)
			}

			tr := track(*ch.Target.Node)
			switch ch.Target.Path {
			case gltf.TRSTranslation, gltf.TRSScale:
				values, ok := out.([][3]float32)
				if !ok {
					return nil, fmt.Errorf("animation %d: unexpected %s type %T", ai, ch.Target.Path, out)
				}
				keys := make([]model.VectorKey, 0, len(times))
				for i, t := range times {
					if i >= len(values) {
						break
					}
					keys = append(keys, model.VectorKey{
						Time:  float64(t),
						Value: mgl32.Vec3(values[i]),
					})
				}
				if ch.Target.Path == gltf.TRSTranslation {
					tr.PositionKeys = append(tr.PositionKeys, keys...)
				} else {
					tr.ScaleKeys = append(tr.ScaleKeys, keys...)
				}
			case gltf.TRSRotation:
				values, ok := out.([][4]float32)
				if !ok {
					return nil, fmt.Errorf("animation %d: unexpected rotation type %T", ai, out)
				}
				for i, t := range times {
					if i >= len(values) {
						break
					}
					tr.RotationKeys = append(tr.RotationKeys, model.QuatKey{
						Time: float64(t),
						Value: mgl32.Quat{
							W: values[i][3],
							V: mgl32.Vec3{values[i][0], values[i][1], values[i][2]},
						},
					})
				}
			}
		}

		if len(tracks) == 0 {
			continue
		}

		name := anim.Name
		if name == "" {
			name = fmt.Sprintf("clip_%d", ai)
		}
		flat := make([]*model.BoneTrack, 0, len(tracks))
		for _, t := range tracks {
			flat = append(flat, t)
		}
		clips = append(clips, model.NewAnimation(name, duration, 1.0, flat))
	}

	return clips, nil
}

func readScalarTimes(doc *gltf.Document, acc uint32) ([]float32, error) {
	raw, err := modeler.ReadAccessor(doc, doc.Accessors[acc], nil)
	if err != nil {
		return nil, err
	}
	times, ok := raw.([]float32)
	if !ok {
		return nil, fmt.Errorf("keyframe input has unexpected type %T", raw)
	}
	return times, nil
}

// meshImages pulls the diffuse and normal images referenced by the mesh's
// first material. Either may be nil.
func meshImages(doc *gltf.Document, basePath string) (diffuse, normal []byte) {
	var mat *gltf.Material
	for _, m := range doc.Meshes {
		for _, prim := range m.Primitives {
			if prim.Material != nil {
				mat = doc.Materials[*prim.Material]
				break
			}
		}
		if mat != nil {
			break
		}
	}
	if mat == nil {
		return nil, nil
	}

	if pbr := mat.PBRMetallicRoughness; pbr != nil && pbr.BaseColorTexture != nil {
		diffuse = imageBytes(doc, pbr.BaseColorTexture.Index, basePath)
	}
	if nt := mat.NormalTexture; nt != nil && nt.Index != nil {
		normal = imageBytes(doc, *nt.Index, basePath)
	}
	return diffuse, normal
}

// imageBytes resolves a texture index to raw encoded image bytes, handling
// buffer views, data URIs and files next to the model.
func imageBytes(doc *gltf.Document, texIndex uint32, basePath string) []byte {
	if int(texIndex) >= len(doc.Textures) {
		return nil
	}
	tex := doc.Textures[texIndex]
	if tex.Source == nil || int(*tex.Source) >= len(doc.Images) {
		return nil
	}
	img := doc.Images[*tex.Source]

	if img.BufferView != nil {
		data, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
		if err != nil {
			logger.Warn("reading embedded image", zap.Error(err))
			return nil
		}
		return data
	}

	if img.URI == "" {
		return nil
	}
	if strings.HasPrefix(img.URI, "data:") {
		comma := strings.IndexByte(img.URI, ',')
		if comma < 0 {
			return nil
		}
		data, err := base64.StdEncoding.DecodeString(img.URI[comma+1:])
		if err != nil {
			logger.Warn("decoding data URI image", zap.Error(err))
			return nil
		}
		return data
	}

	data, err := readFile(filepath.Join(filepath.Dir(basePath), img.URI))
	if err != nil {
		logger.Warn("reading image file", zap.String("uri", img.URI), zap.Error(err))
		return nil
	}
	return data
}
