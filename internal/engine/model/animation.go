package model

import "github.com/go-gl/mathgl/mgl32"

// DefaultTicksPerSecond is used when a clip declares a rate of zero.
const DefaultTicksPerSecond = 25.0

// VectorKey is one position or scale sample.
type VectorKey struct {
	Time  float64
	Value mgl32.Vec3
}

// QuatKey is one rotation sample.
type QuatKey struct {
	Time  float64
	Value mgl32.Quat
}

// BoneTrack holds the key channels targeting one node. Any channel may be
// empty, in which case the node's bind-pose component is used.
type BoneTrack struct {
	BoneName     string
	PositionKeys []VectorKey
	RotationKeys []QuatKey
	ScaleKeys    []VectorKey
}

// MaxKeyTime returns the largest timestamp in any channel of the track.
func (t *BoneTrack) MaxKeyTime() float64 {
	var max float64
	for _, k := range t.PositionKeys {
		if k.Time > max {
			max = k.Time
		}
	}
	for _, k := range t.RotationKeys {
		if k.Time > max {
			max = k.Time
		}
	}
	for _, k := range t.ScaleKeys {
		if k.Time > max {
			max = k.Time
		}
	}
	return max
}

// Animation is one clip: named, with a duration and rate in ticks.
type Animation struct {
	Name           string
	Duration       float64
	TicksPerSecond float64
	Tracks         []*BoneTrack

	trackByName map[string]*BoneTrack
}

// NewAnimation builds a clip and clamps a declared duration that exceeds the
// largest key timestamp actually present (malformed metadata guard).
func NewAnimation(name string, duration, tps float64, tracks []*BoneTrack) *Animation {
	var maxKey float64
	for _, tr := range tracks {
		if t := tr.MaxKeyTime(); t > maxKey {
			maxKey = t
		}
	}
	if maxKey > 0 && duration > maxKey {
		duration = maxKey
	}

	byName := make(map[string]*BoneTrack, len(tracks))
	for _, tr := range tracks {
		byName[tr.BoneName] = tr
	}

	return &Animation{
		Name:           name,
		Duration:       duration,
		TicksPerSecond: tps,
		Tracks:         tracks,
		trackByName:    byName,
	}
}

// Track returns the track targeting the named node, or nil.
func (a *Animation) Track(name string) *BoneTrack {
	return a.trackByName[name]
}

// State is the playback position of a viewer session: which clip is active,
// the current time in ticks, and whether playback advances.
type State struct {
	Clip    int
	Time    float64
	Playing bool
}

// Advance moves the playback time forward by dt seconds, wrapping at the
// clip's duration. Does nothing when paused or when no clips exist.
func (s *State) Advance(dt float64, clips []*Animation) {
	if !s.Playing || len(clips) == 0 {
		return
	}
	clip := clips[s.Clip]

	tps := clip.TicksPerSecond
	if tps == 0 {
		tps = DefaultTicksPerSecond
	}

	s.Time += dt * tps
	if clip.Duration > 0 {
		for s.Time >= clip.Duration {
			s.Time -= clip.Duration
		}
	}
}

// SetClip switches to the given clip index, wrapping out-of-range values
// into [0, len(clips)), and resets time to the clip start.
func (s *State) SetClip(idx int, clips []*Animation) {
	if len(clips) == 0 {
		s.Clip = 0
		s.Time = 0
		return
	}
	idx %= len(clips)
	if idx < 0 {
		idx += len(clips)
	}
	s.Clip = idx
	s.Time = 0
}
