package model

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNewAnimationClampsDuration(t *testing.T) {
	track := &BoneTrack{
		BoneName: "root",
		PositionKeys: []VectorKey{
			{Time: 0, Value: mgl32.Vec3{0, 0, 0}},
			{Time: 1.5, Value: mgl32.Vec3{1, 0, 0}},
		},
	}

	// Declared duration exceeds the last key timestamp.
	anim := NewAnimation("walk", 10.0, 25.0, []*BoneTrack{track})
	if anim.Duration != 1.5 {
		t.Errorf("expected duration clamped to 1.5, got %f", anim.Duration)
	}

	// Declared duration within the key range stays as declared.
	anim = NewAnimation("walk", 1.0, 25.0, []*BoneTrack{track})
	if anim.Duration != 1.0 {
		t.Errorf("expected duration 1.0, got %f", anim.Duration)
	}
}

func TestAnimationTrackLookup(t *testing.T) {
	tr := &BoneTrack{BoneName: "arm"}
	anim := NewAnimation("idle", 1, 25, []*BoneTrack{tr})

	if anim.Track("arm") != tr {
		t.Error("expected to find track 'arm'")
	}
	if anim.Track("leg") != nil {
		t.Error("expected nil for missing track")
	}
}

func TestStateAdvanceWraps(t *testing.T) {
	clip := NewAnimation("loop", 2.0, 1.0, nil)
	clips := []*Animation{clip}

	s := State{Playing: true}
	s.Advance(3.0, clips)

	if s.Time != 1.0 {
		t.Errorf("expected time 1.0 after wrapping, got %f", s.Time)
	}
}

func TestStateAdvanceDefaultRate(t *testing.T) {
	// Rate 0 means 25 ticks per second.
	clip := NewAnimation("loop", 100.0, 0, nil)
	clips := []*Animation{clip}

	s := State{Playing: true}
	s.Advance(2.0, clips)

	if s.Time != 50.0 {
		t.Errorf("expected time 50.0 with default rate, got %f", s.Time)
	}
}

func TestStateAdvancePaused(t *testing.T) {
	clip := NewAnimation("loop", 2.0, 1.0, nil)
	clips := []*Animation{clip}

	s := State{Playing: false, Time: 0.5}
	s.Advance(1.0, clips)

	if s.Time != 0.5 {
		t.Errorf("expected time unchanged while paused, got %f", s.Time)
	}
}

func TestStateAdvanceNoClips(t *testing.T) {
	s := State{Playing: true}
	s.Advance(1.0, nil)

	if s.Time != 0 {
		t.Errorf("expected time 0 with no clips, got %f", s.Time)
	}
}

func TestStateSetClipWraps(t *testing.T) {
	clips := []*Animation{
		NewAnimation("a", 1, 25, nil),
		NewAnimation("b", 1, 25, nil),
		NewAnimation("c", 1, 25, nil),
	}

	s := State{Clip: 0, Time: 0.7}
	s.SetClip(-1, clips)
	if s.Clip != 2 {
		t.Errorf("expected clip -1 to wrap to 2, got %d", s.Clip)
	}
	if s.Time != 0 {
		t.Errorf("expected time reset on clip switch, got %f", s.Time)
	}

	s.SetClip(3, clips)
	if s.Clip != 0 {
		t.Errorf("expected clip 3 to wrap to 0, got %d", s.Clip)
	}

	s.SetClip(1, clips)
	if s.Clip != 1 {
		t.Errorf("expected clip 1, got %d", s.Clip)
	}
}

func TestMeshGeneration(t *testing.T) {
	m := NewMesh(nil, nil)
	if m.Generation() != 1 {
		t.Errorf("expected initial generation 1, got %d", m.Generation())
	}

	m.Bump()
	m.Bump()
	if m.Generation() != 3 {
		t.Errorf("expected generation 3 after two bumps, got %d", m.Generation())
	}
}

func TestDefaultTextures(t *testing.T) {
	d := DefaultDiffuse()
	if d.Width != 1 || d.Height != 1 || len(d.Pixels) != 4 {
		t.Errorf("unexpected default diffuse shape: %dx%d, %d bytes", d.Width, d.Height, len(d.Pixels))
	}

	n := DefaultNormal()
	if n.Pixels[2] != 255 {
		t.Errorf("expected +Z normal (blue 255), got %d", n.Pixels[2])
	}
}
