package viewer

import (
	"math"
	"testing"

	"github.com/sfenley/meshterm/internal/assets"
	"github.com/sfenley/meshterm/internal/engine/camera"
	"github.com/sfenley/meshterm/internal/engine/input"
	"github.com/sfenley/meshterm/internal/engine/model"
)

func testViewer() *Viewer {
	clips := []*model.Animation{
		model.NewAnimation("idle", 1, 1, nil),
		model.NewAnimation("walk", 1, 1, nil),
		model.NewAnimation("run", 1, 1, nil),
	}
	return &Viewer{
		bundle:  &assets.Bundle{Mesh: &model.Mesh{Animations: clips}},
		camera:  camera.NewOrbitCamera(),
		running: true,
	}
}

// One arrow press must yaw the camera by exactly OrbitStep radians.
func TestHandleEventOrbitStep(t *testing.T) {
	v := testViewer()
	before := v.camera.Yaw

	v.handleEvent(input.Event{Type: input.EventOrbitRight})

	got := float64(v.camera.Yaw - before)
	if math.Abs(got-float64(v.camera.OrbitStep)) > 1e-6 {
		t.Errorf("yaw moved %v per press, want %v", got, v.camera.OrbitStep)
	}
}

// One zoom press must move the camera by ZoomStep of its distance.
func TestHandleEventZoomStep(t *testing.T) {
	v := testViewer()
	before := v.camera.Distance

	v.handleEvent(input.Event{Type: input.EventZoomIn})

	want := before - before*v.camera.ZoomStep
	if math.Abs(float64(v.camera.Distance-want)) > 1e-6 {
		t.Errorf("distance = %v after zoom in, want %v", v.camera.Distance, want)
	}
	if v.camera.Distance >= before {
		t.Errorf("zoom in moved the camera away: %v -> %v", before, v.camera.Distance)
	}
}

func TestHandleEventClipWraparound(t *testing.T) {
	v := testViewer()
	v.state.Time = 0.5

	v.handleEvent(input.Event{Type: input.EventPrevClip})

	if v.state.Clip != 2 {
		t.Errorf("clip = %d, want 2", v.state.Clip)
	}
	if v.state.Time != 0 {
		t.Errorf("time = %v, want 0", v.state.Time)
	}
}

func TestHandleEventQuit(t *testing.T) {
	v := testViewer()
	v.handleEvent(input.Event{Type: input.EventQuit})
	if v.running {
		t.Error("quit event left the viewer running")
	}
}
