package model

import "github.com/go-gl/mathgl/mgl32"

// Bone is one skinning bone. The offset matrix maps mesh space into bone
// space (the inverse bind matrix). Bones are immutable after load.
type Bone struct {
	Name   string
	Offset mgl32.Mat4
	Index  int
}

// BoneNode is one node of the scene hierarchy, stored in a flat array with
// integer parent/child links. Parent is -1 for roots; a parent index is
// always less than or equal to the node's own index, so the array encodes
// a tree in topological order.
type BoneNode struct {
	Name      string
	Transform mgl32.Mat4 // local bind-pose transform

	// Decomposed bind components, used as channel fallbacks when an
	// animation track targets the node but leaves a channel empty.
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	Parent   int
	Children []int
}

// Skeleton is the full rig: skinning bones, the node hierarchy they hang
// from, and the inverse of the scene root's global transform.
type Skeleton struct {
	Bones         []Bone
	Nodes         []BoneNode
	BoneByName    map[string]int
	GlobalInverse mgl32.Mat4
}

// NewSkeleton builds the name lookup from the given bone list.
func NewSkeleton(bones []Bone, nodes []BoneNode, globalInverse mgl32.Mat4) *Skeleton {
	byName := make(map[string]int, len(bones))
	for i := range bones {
		byName[bones[i].Name] = i
	}
	return &Skeleton{
		Bones:         bones,
		Nodes:         nodes,
		BoneByName:    byName,
		GlobalInverse: globalInverse,
	}
}

// BoneIndex returns the skinning bone index for a node name, or -1 when the
// node is not a skinning bone.
func (s *Skeleton) BoneIndex(name string) int {
	if i, ok := s.BoneByName[name]; ok {
		return i
	}
	return -1
}

// Roots returns the indices of all root nodes (Parent == -1).
func (s *Skeleton) Roots() []int {
	var roots []int
	for i := range s.Nodes {
		if s.Nodes[i].Parent < 0 {
			roots = append(roots, i)
		}
	}
	return roots
}
