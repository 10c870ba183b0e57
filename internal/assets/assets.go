// Package assets loads glTF models and image textures from disk.
package assets

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/sfenley/meshterm/internal/engine/model"
	"github.com/sfenley/meshterm/internal/logger"
)

// Bundle is everything the viewer needs for one model: geometry with its
// rig and clips, plus resolved diffuse and normal textures. Textures are
// never nil; missing images fall back to neutral defaults.
type Bundle struct {
	Mesh    *model.Mesh
	Diffuse *model.Texture
	Normal  *model.Texture
}

// Options selects the model file and optional texture overrides. Override
// paths win over images embedded in the model.
type Options struct {
	ModelPath   string
	DiffusePath string
	NormalPath  string
}

// Load reads the model and resolves its textures.
func Load(opts Options) (*Bundle, error) {
	if opts.ModelPath == "" {
		return nil, fmt.Errorf("no model path given")
	}

	doc, err := gltf.Open(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", opts.ModelPath, err)
	}

	mesh, err := meshFromDocument(doc, opts.ModelPath)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{Mesh: mesh}
	embeddedDiffuse, embeddedNormal := meshImages(doc, opts.ModelPath)

	bundle.Diffuse = resolveTexture("diffuse", opts.DiffusePath, embeddedDiffuse, model.DefaultDiffuse)
	bundle.Normal = resolveTexture("normal", opts.NormalPath, embeddedNormal, model.DefaultNormal)

	return bundle, nil
}

// resolveTexture applies the override > embedded > default precedence,
// logging a warning at each fallback.
func resolveTexture(kind, override string, embedded []byte, fallback func() *model.Texture) *model.Texture {
	if override != "" {
		tex, err := LoadTexture(override)
		if err == nil {
			return tex
		}
		logger.Warn("texture override unusable, trying embedded image",
			zap.String("kind", kind), zap.String("path", override), zap.Error(err))
	}

	if len(embedded) > 0 {
		tex, err := DecodeTexture(embedded)
		if err == nil {
			return tex
		}
		logger.Warn("embedded texture unusable, using default",
			zap.String("kind", kind), zap.Error(err))
	} else if override == "" {
		logger.Warn("model has no usable texture, using default", zap.String("kind", kind))
	}

	return fallback()
}
