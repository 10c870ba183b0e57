package model

import (
	gomath "math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// timeEpsilon guards the interpolation factor against degenerate key pairs
// sharing (almost) the same timestamp.
const timeEpsilon = 1e-6

// Pose evaluates the skeleton at the given time in ticks and returns the
// per-bone skinning matrices: globalInverse * global(node) * offset(bone).
// Slots for bones never visited stay identity; bad data degrades to the
// bind pose instead of failing.
func Pose(skel *Skeleton, anim *Animation, time float64) [MaxBones]mgl32.Mat4 {
	var out [MaxBones]mgl32.Mat4
	for i := range out {
		out[i] = mgl32.Ident4()
	}
	if skel == nil {
		return out
	}

	for _, root := range skel.Roots() {
		walkNode(skel, anim, time, root, mgl32.Ident4(), &out)
	}
	return out
}

// walkNode descends the hierarchy depth-first, accumulating global
// transforms. Nodes mapped to a skinning bone write their slot; unmapped
// nodes only propagate.
func walkNode(skel *Skeleton, anim *Animation, time float64, idx int, parent mgl32.Mat4, out *[MaxBones]mgl32.Mat4) {
	node := &skel.Nodes[idx]

	local := node.Transform
	if anim != nil {
		if track := anim.Track(node.Name); track != nil {
			local = trackTransform(node, track, time)
		}
	}

	global := parent.Mul4(local)

	if bone := skel.BoneIndex(node.Name); bone >= 0 && bone < MaxBones {
		out[bone] = skel.GlobalInverse.Mul4(global).Mul4(skel.Bones[bone].Offset)
	}

	for _, child := range node.Children {
		walkNode(skel, anim, time, child, global, out)
	}
}

// trackTransform builds T*R*S from the track's channels at the given time.
// Empty channels fall back to the node's bind-pose components.
func trackTransform(node *BoneNode, track *BoneTrack, time float64) mgl32.Mat4 {
	pos := node.Position
	rot := node.Rotation
	scale := node.Scale

	if len(track.PositionKeys) > 0 {
		pos = sampleVectorKeys(track.PositionKeys, time)
	}
	if len(track.RotationKeys) > 0 {
		rot = sampleQuatKeys(track.RotationKeys, time)
	}
	if len(track.ScaleKeys) > 0 {
		scale = sampleVectorKeys(track.ScaleKeys, time)
	}

	t := mgl32.Translate3D(pos.X(), pos.Y(), pos.Z())
	r := rot.Normalize().Mat4()
	s := mgl32.Scale3D(scale.X(), scale.Y(), scale.Z())
	return t.Mul4(r).Mul4(s)
}

// bracket finds the key pair surrounding time in an ascending-time slice of
// length n and returns (i0, i1, factor). Time outside the key range clamps
// to the first/last key; there is no extrapolation.
func bracket(n int, timeAt func(int) float64, time float64) (int, int, float32) {
	if time <= timeAt(0) {
		return 0, 0, 0
	}
	if time >= timeAt(n-1) {
		return n - 1, n - 1, 0
	}

	// First key with timestamp strictly greater than time.
	hi := sort.Search(n, func(i int) bool { return timeAt(i) > time })
	lo := hi - 1

	span := timeAt(hi) - timeAt(lo)
	if span < timeEpsilon {
		return lo, hi, 0
	}
	f := (time - timeAt(lo)) / span
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	return lo, hi, float32(f)
}

func sampleVectorKeys(keys []VectorKey, time float64) mgl32.Vec3 {
	if len(keys) == 1 {
		return keys[0].Value
	}
	lo, hi, f := bracket(len(keys), func(i int) float64 { return keys[i].Time }, time)
	if lo == hi {
		return keys[lo].Value
	}
	a, b := keys[lo].Value, keys[hi].Value
	return a.Add(b.Sub(a).Mul(f))
}

func sampleQuatKeys(keys []QuatKey, time float64) mgl32.Quat {
	if len(keys) == 1 {
		return keys[0].Value
	}
	lo, hi, f := bracket(len(keys), func(i int) float64 { return keys[i].Time }, time)
	if lo == hi {
		return keys[lo].Value
	}
	return slerp(keys[lo].Value, keys[hi].Value, f)
}

// slerp interpolates along the shorter arc, negating the second quaternion
// when the dot product is negative, and renormalizes the result.
func slerp(a, b mgl32.Quat, t float32) mgl32.Quat {
	dot := a.Dot(b)

	if dot < 0 {
		b = mgl32.Quat{W: -b.W, V: mgl32.Vec3{-b.V[0], -b.V[1], -b.V[2]}}
		dot = -dot
	}

	// Nearly parallel quaternions: fall back to lerp to avoid dividing by a
	// vanishing sine.
	if dot > 0.9995 {
		return mgl32.Quat{
			W: a.W + t*(b.W-a.W),
			V: mgl32.Vec3{
				a.V[0] + t*(b.V[0]-a.V[0]),
				a.V[1] + t*(b.V[1]-a.V[1]),
				a.V[2] + t*(b.V[2]-a.V[2]),
			},
		}.Normalize()
	}

	theta0 := float32(gomath.Acos(float64(dot)))
	theta := theta0 * t
	sinTheta := float32(gomath.Sin(float64(theta)))
	sinTheta0 := float32(gomath.Sin(float64(theta0)))

	s0 := float32(gomath.Cos(float64(theta))) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return mgl32.Quat{
		W: a.W*s0 + b.W*s1,
		V: mgl32.Vec3{
			a.V[0]*s0 + b.V[0]*s1,
			a.V[1]*s0 + b.V[1]*s1,
			a.V[2]*s0 + b.V[2]*s1,
		},
	}.Normalize()
}
