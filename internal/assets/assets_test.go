package assets

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"

	"github.com/sfenley/meshterm/internal/engine/model"
)

func pngBytes(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeTexture(t *testing.T) {
	tex, err := DecodeTexture(pngBytes(t, 4, 2, color.RGBA{10, 20, 30, 255}))
	if err != nil {
		t.Fatal(err)
	}
	if tex.Width != 4 || tex.Height != 2 {
		t.Fatalf("size = %dx%d, want 4x2", tex.Width, tex.Height)
	}
	if len(tex.Pixels) != 4*2*4 {
		t.Fatalf("pixel buffer %d bytes, want %d", len(tex.Pixels), 4*2*4)
	}
	if tex.Pixels[0] != 10 || tex.Pixels[1] != 20 || tex.Pixels[2] != 30 || tex.Pixels[3] != 255 {
		t.Errorf("first pixel = %v", tex.Pixels[:4])
	}
}

func TestDecodeTextureDownscale(t *testing.T) {
	tex, err := DecodeTexture(pngBytes(t, maxTextureDim*2, maxTextureDim, color.RGBA{255, 0, 0, 255}))
	if err != nil {
		t.Fatal(err)
	}
	if tex.Width > maxTextureDim || tex.Height > maxTextureDim {
		t.Errorf("downscaled size = %dx%d exceeds %d", tex.Width, tex.Height, maxTextureDim)
	}
	// Aspect ratio must survive the downscale.
	if tex.Width != 2*tex.Height {
		t.Errorf("aspect ratio lost: %dx%d", tex.Width, tex.Height)
	}
}

func TestDecodeTextureGarbage(t *testing.T) {
	if _, err := DecodeTexture([]byte("not an image")); err == nil {
		t.Error("expected decode error")
	}
}

func TestResolveTextureFallback(t *testing.T) {
	// No override, no embedded image: the default wins.
	tex := resolveTexture("diffuse", "", nil, model.DefaultDiffuse)
	if tex.Width != 1 || tex.Height != 1 {
		t.Fatalf("fallback texture = %dx%d, want 1x1", tex.Width, tex.Height)
	}

	// A good embedded image beats the default.
	tex = resolveTexture("diffuse", "", pngBytes(t, 2, 2, color.RGBA{1, 2, 3, 255}), model.DefaultDiffuse)
	if tex.Width != 2 {
		t.Errorf("embedded image ignored, got %dx%d", tex.Width, tex.Height)
	}

	// A broken override falls through to the embedded image.
	tex = resolveTexture("diffuse", "/does/not/exist.png", pngBytes(t, 3, 3, color.RGBA{0, 0, 0, 255}), model.DefaultDiffuse)
	if tex.Width != 3 {
		t.Errorf("embedded fallback ignored, got %dx%d", tex.Width, tex.Height)
	}
}

func TestNodeLocalMatrixTRS(t *testing.T) {
	n := &gltf.Node{
		Translation: [3]float32{1, 2, 3},
		Rotation:    [4]float32{0, 0, 0, 1},
		Scale:       [3]float32{2, 2, 2},
	}
	m := nodeLocalMatrix(n)

	p := mgl32.TransformCoordinate(mgl32.Vec3{1, 0, 0}, m)
	want := mgl32.Vec3{3, 2, 3}
	if p.Sub(want).Len() > 1e-5 {
		t.Errorf("transformed point = %v, want %v", p, want)
	}
}

func TestNodeLocalMatrixZeroValue(t *testing.T) {
	// A node with no authored transform must come out identity.
	m := nodeLocalMatrix(&gltf.Node{})
	if m != mgl32.Ident4() {
		t.Errorf("zero node matrix = %v, want identity", m)
	}
}

func TestNodeLocalMatrixAuthored(t *testing.T) {
	var raw [16]float32
	src := mgl32.Translate3D(5, 0, 0)
	copy(raw[:], src[:])
	m := nodeLocalMatrix(&gltf.Node{Matrix: raw})
	if m != mgl32.Translate3D(5, 0, 0) {
		t.Errorf("authored matrix not used: %v", m)
	}
}

func TestDecomposeAuthoredMatrix(t *testing.T) {
	var raw [16]float32
	src := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.HomogRotate3DY(float32(math.Pi / 2))).Mul4(mgl32.Scale3D(2, 2, 2))
	copy(raw[:], src[:])

	n := &gltf.Node{Matrix: raw}
	pos, rot, scale := decompose(nodeLocalMatrix(n), n)

	if pos.Sub(mgl32.Vec3{1, 2, 3}).Len() > 1e-4 {
		t.Errorf("position = %v", pos)
	}
	if scale.Sub(mgl32.Vec3{2, 2, 2}).Len() > 1e-4 {
		t.Errorf("scale = %v", scale)
	}
	// Recompose and compare.
	got := mgl32.Translate3D(pos.X(), pos.Y(), pos.Z()).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
	for i := range src {
		if math.Abs(float64(src[i]-got[i])) > 1e-3 {
			t.Fatalf("recomposed matrix differs at %d: %v vs %v", i, src, got)
		}
	}
}

func TestTangentBasisOrthogonal(t *testing.T) {
	for _, n := range []mgl32.Vec3{{0, 1, 0}, {0, -1, 0}, {1, 0, 0}, {0.577, 0.577, 0.577}} {
		n = n.Normalize()
		tan, bitan := tangentBasis(n)
		if math.Abs(float64(tan.Dot(n))) > 1e-5 {
			t.Errorf("tangent not perpendicular to %v", n)
		}
		if math.Abs(float64(bitan.Dot(n))) > 1e-5 || math.Abs(float64(bitan.Dot(tan))) > 1e-5 {
			t.Errorf("bitangent not perpendicular for %v", n)
		}
	}
}

func TestBuildSkeletonFlattensParentFirst(t *testing.T) {
	doc := &gltf.Document{
		Nodes: []*gltf.Node{
			{Name: "root", Children: []uint32{1, 2}},
			{Name: "left"},
			{Name: "right", Children: []uint32{3}},
			{Name: "tip"},
		},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0}}},
	}

	skel, names, err := buildSkeleton(doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(skel.Nodes) != 4 {
		t.Fatalf("got %d nodes, want 4", len(skel.Nodes))
	}
	for i, n := range skel.Nodes {
		if n.Parent >= i {
			t.Errorf("node %d %q has parent %d, want parent-first order", i, n.Name, n.Parent)
		}
	}
	if skel.Nodes[0].Name != "root" || skel.Nodes[0].Parent != -1 {
		t.Errorf("root node wrong: %+v", skel.Nodes[0])
	}
	if names[3] != "tip" {
		t.Errorf("name map wrong: %v", names)
	}
	if len(skel.Bones) != 0 {
		t.Errorf("skinless skeleton has %d bones", len(skel.Bones))
	}
}

func TestBuildSkeletonUnnamedNodes(t *testing.T) {
	doc := &gltf.Document{
		Nodes:  []*gltf.Node{{}},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0}}},
	}
	skel, names, err := buildSkeleton(doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if names[0] != "node_0" || skel.Nodes[0].Name != "node_0" {
		t.Errorf("unnamed node got %q", skel.Nodes[0].Name)
	}
}

func TestDecodeTGAUncompressed(t *testing.T) {
	// 2x1, 24bpp, bottom-to-top: red then blue in BGR order.
	data := make([]byte, 18)
	data[2] = tgaTypeUncompressed
	data[12] = 2 // width
	data[14] = 1 // height
	data[16] = 24
	data = append(data,
		0, 0, 255, // red
		255, 0, 0, // blue
	)

	tex, err := decodeTGA(data)
	if err != nil {
		t.Fatal(err)
	}
	if tex.Width != 2 || tex.Height != 1 {
		t.Fatalf("size = %dx%d", tex.Width, tex.Height)
	}
	if tex.Pixels[0] != 255 || tex.Pixels[1] != 0 || tex.Pixels[2] != 0 || tex.Pixels[3] != 255 {
		t.Errorf("first pixel = %v, want red", tex.Pixels[:4])
	}
	if tex.Pixels[4] != 0 || tex.Pixels[6] != 255 {
		t.Errorf("second pixel = %v, want blue", tex.Pixels[4:8])
	}
}

func TestDecodeTGARLE(t *testing.T) {
	// 4x1, 32bpp, one RLE packet repeating a green pixel four times.
	data := make([]byte, 18)
	data[2] = tgaTypeRLE
	data[12] = 4
	data[14] = 1
	data[16] = 32
	data[17] = 0x20 // top-to-bottom
	data = append(data,
		0x83,            // RLE packet, count 4
		0, 255, 0, 0x80, // BGRA green, half alpha
	)

	tex, err := decodeTGA(data)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		p := tex.Pixels[i*4 : i*4+4]
		if p[0] != 0 || p[1] != 255 || p[2] != 0 || p[3] != 0x80 {
			t.Fatalf("pixel %d = %v", i, p)
		}
	}
}

func TestDecodeTGARejects(t *testing.T) {
	if _, err := decodeTGA([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short data")
	}
	bad := make([]byte, 18)
	bad[2] = 1 // color-mapped
	if _, err := decodeTGA(bad); err == nil {
		t.Error("expected error for color-mapped TGA")
	}
}

func TestFindMeshNodePrefersSkinned(t *testing.T) {
	m0, m1 := uint32(0), uint32(1)
	s0 := uint32(0)
	doc := &gltf.Document{
		Nodes: []*gltf.Node{
			{Name: "static", Mesh: &m0},
			{Name: "skinned", Mesh: &m1, Skin: &s0},
		},
	}
	if got := findMeshNode(doc); got != 1 {
		t.Errorf("findMeshNode = %d, want 1", got)
	}
}

func floatBytes(vals ...float32) []byte {
	out := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func TestReadAnimationsTranslationTrack(t *testing.T) {
	// Keyframe times [0, 1] followed by two vec3 translations.
	data := floatBytes(0, 1)
	data = append(data, floatBytes(0, 0, 0, 1, 0, 0)...)

	doc := &gltf.Document{
		Nodes:  []*gltf.Node{{Name: "root"}},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0}}},
		Buffers: []*gltf.Buffer{{
			ByteLength: uint32(len(data)),
			Data:       data,
		}},
		BufferViews: []*gltf.BufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: 8},
			{Buffer: 0, ByteOffset: 8, ByteLength: 24},
		},
		Accessors: []*gltf.Accessor{
			{BufferView: gltf.Index(0), ComponentType: gltf.ComponentFloat, Type: gltf.AccessorScalar, Count: 2},
			{BufferView: gltf.Index(1), ComponentType: gltf.ComponentFloat, Type: gltf.AccessorVec3, Count: 2},
		},
		Animations: []*gltf.Animation{{
			Name: "walk",
			Channels: []*gltf.Channel{
				{
					Sampler: gltf.Index(0),
					Target:  gltf.ChannelTarget{Node: gltf.Index(0), Path: gltf.TRSTranslation},
				},
				// A channel without a sampler is skipped, not an error.
				{
					Target: gltf.ChannelTarget{Node: gltf.Index(0), Path: gltf.TRSRotation},
				},
			},
			Samplers: []*gltf.AnimationSampler{
				{Input: gltf.Index(0), Output: gltf.Index(1)},
			},
		}},
	}

	clips, err := readAnimations(doc, map[uint32]string{0: "root"})
	if err != nil {
		t.Fatal(err)
	}
	if len(clips) != 1 {
		t.Fatalf("got %d clips, want 1", len(clips))
	}
	clip := clips[0]
	if clip.Name != "walk" {
		t.Errorf("clip name = %q", clip.Name)
	}
	if clip.Duration != 1 {
		t.Errorf("duration = %v, want 1", clip.Duration)
	}
	if len(clip.Tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(clip.Tracks))
	}
	tr := clip.Tracks[0]
	if tr.BoneName != "root" {
		t.Errorf("track bone = %q", tr.BoneName)
	}
	if len(tr.PositionKeys) != 2 {
		t.Fatalf("got %d position keys, want 2", len(tr.PositionKeys))
	}
	if got := tr.PositionKeys[1].Value; got != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("second key = %v", got)
	}
	if len(tr.RotationKeys) != 0 {
		t.Errorf("samplerless channel produced %d rotation keys", len(tr.RotationKeys))
	}
}
