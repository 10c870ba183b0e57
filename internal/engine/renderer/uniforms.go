package renderer

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/sfenley/meshterm/internal/engine/model"
)

// Alpha modes passed to the fragment shader.
const (
	AlphaOpaque = 0
	AlphaMask   = 1
	AlphaBlend  = 2
)

// uniformBlock is the per-frame GPU uniform buffer. Field order and types
// match the std140 block in shaders/model.vert and shaders/model.frag:
// mat4 and vec4 members only, so the Go layout is byte-identical.
type uniformBlock struct {
	Model  mgl32.Mat4
	View   mgl32.Mat4
	Proj   mgl32.Mat4
	SkyInv mgl32.Mat4 // inverse(proj * rotation-only view), for sky rays
	Bones  [model.MaxBones]mgl32.Mat4

	LightDir  mgl32.Vec4
	CameraPos mgl32.Vec4
	FogColor  mgl32.Vec4
	FogParams mgl32.Vec4 // x: start, y: end, z: enabled
	Params    mgl32.Vec4 // x: alpha mode, y: lighting, z: sky textured
}

// writeUniforms fills the slot's mapped uniform buffer from the frame
// input. The memory is host-coherent; no flush is needed.
func (r *Renderer) writeUniforms(slot *frameSlot, in *FrameInput) {
	var u uniformBlock
	u.Model = in.ModelMatrix
	u.View = in.ViewMatrix
	u.Proj = in.ProjMatrix
	u.Bones = in.BoneMatrices

	// Sky rays are reconstructed in the fragment shader from NDC through
	// the inverse of projection and the rotation-only view.
	skyView := in.ViewMatrix
	skyView.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	u.SkyInv = in.ProjMatrix.Mul4(skyView).Inv()

	u.LightDir = in.LightDir.Vec4(0)
	u.CameraPos = in.CameraPos.Vec4(1)
	u.FogColor = in.FogColor.Vec4(1)
	u.FogParams = mgl32.Vec4{in.FogStart, in.FogEnd, boolFloat(in.FogEnabled), 0}
	u.Params = mgl32.Vec4{float32(in.AlphaMode), boolFloat(in.Lighting), boolFloat(in.SkyTextured), 0}

	vk.Memcopy(slot.uniformMapped, rawBytes(unsafe.Pointer(&u), int(unsafe.Sizeof(u))))
}

func boolFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
