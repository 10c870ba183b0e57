package renderer

import (
	"testing"

	"github.com/sfenley/meshterm/internal/engine/model"
)

func TestGeometryStateNeedsUpload(t *testing.T) {
	var g geometryState

	if !g.needsUpload(1) {
		t.Error("empty cache should need upload")
	}

	g.markUploaded(1)
	if g.needsUpload(1) {
		t.Error("matching generation should not need upload")
	}

	if !g.needsUpload(2) {
		t.Error("bumped generation should need upload")
	}

	g.markUploaded(2)
	if g.needsUpload(2) {
		t.Error("re-uploaded generation should not need upload")
	}
}

func TestTextureStateNeedsUpload(t *testing.T) {
	tex := &model.Texture{Width: 2, Height: 2, Pixels: make([]byte, 16)}

	var s textureState
	if !s.needsUpload(tex) {
		t.Error("empty cache should need upload")
	}

	s.key = keyForTexture(tex)
	s.valid = true
	if s.needsUpload(tex) {
		t.Error("same texture should hit the fast path")
	}

	// Same size, different backing buffer: the identity key must miss.
	other := &model.Texture{Width: 2, Height: 2, Pixels: make([]byte, 16)}
	if !s.needsUpload(other) {
		t.Error("different backing buffer should need upload")
	}

	// Different size.
	bigger := &model.Texture{Width: 4, Height: 4, Pixels: make([]byte, 64)}
	if !s.needsUpload(bigger) {
		t.Error("different size should need upload")
	}
}

func TestTextureKeyInPlaceMutationNotDetected(t *testing.T) {
	// The key is the identity of the backing array, not its contents.
	// Mutating pixels in place keeps the key equal; callers must allocate
	// a fresh buffer to force a re-upload.
	tex := &model.Texture{Width: 1, Height: 1, Pixels: []byte{0, 0, 0, 255}}

	var s textureState
	s.key = keyForTexture(tex)
	s.valid = true

	tex.Pixels[0] = 255
	if s.needsUpload(tex) {
		t.Error("in-place mutation should not change the identity key")
	}
}

func TestStagingRotationIndependentOfSlots(t *testing.T) {
	// The staging pool is deliberately larger than the slot count, so the
	// (slot, staging) pairing shifts every rotation.
	if stagingCount <= framesInFlight {
		t.Fatalf("staging pool (%d) must exceed frames in flight (%d)", stagingCount, framesInFlight)
	}

	slot := 0
	stagingIdx := 0
	seen := make(map[[2]int]bool)
	for i := 0; i < framesInFlight*stagingCount; i++ {
		pair := [2]int{slot, stagingIdx}
		if seen[pair] {
			t.Fatalf("pairing (%d,%d) repeated after %d ticks", slot, stagingIdx, i)
		}
		seen[pair] = true
		slot = (slot + 1) % framesInFlight
		stagingIdx = (stagingIdx + 1) % stagingCount
	}
}

func TestInvalidateSlotsDropsPendingFrames(t *testing.T) {
	// After a resize every slot must report not-ready, so the next
	// framesInFlight renders return no pixels instead of stale data from
	// the old resolution.
	var r Renderer
	for i := range r.slots {
		r.slots[i].ready = true
		r.slots[i].stagingIndex = i
	}
	r.stagingCursor = stagingCount - 1

	r.invalidateSlots()

	for i := range r.slots {
		if r.slots[i].ready {
			t.Errorf("slot %d still ready after invalidation", i)
		}
	}
	if r.stagingCursor != 0 {
		t.Errorf("staging cursor = %d, want 0", r.stagingCursor)
	}
}
