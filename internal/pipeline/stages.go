// Package pipeline derives native pipeline and render pass descriptions from
// declarative pass configuration.
package pipeline

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// ErrInvalidStages is returned when a pass is built from anything other than
// exactly one compute shader, or exactly one vertex and one fragment shader.
var ErrInvalidStages = errors.New("invalid shader stage combination")

// ShaderStage tags a shader with the pipeline stage it runs in.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "Vertex"
	case StageFragment:
		return "Fragment"
	case StageCompute:
		return "Compute"
	}
	return "ShaderStage(unknown)"
}

// Native returns the stage flag of a shader stage.
func (s ShaderStage) Native() core1_0.ShaderStageFlags {
	switch s {
	case StageFragment:
		return core1_0.StageFragment
	case StageCompute:
		return core1_0.StageCompute
	}
	return core1_0.StageVertex
}

// Kind is the pipeline bind point a stage set builds.
type Kind int

const (
	Graphics Kind = iota
	Compute
)

func (k Kind) String() string {
	if k == Compute {
		return "compute"
	}
	return "graphics"
}

// BindPoint returns the native bind point of the kind.
func (k Kind) BindPoint() core1_0.PipelineBindPoint {
	if k == Compute {
		return core1_0.PipelineBindPointCompute
	}
	return core1_0.PipelineBindPointGraphics
}

// Visibility returns the stages descriptor sets of the kind are visible to.
func (k Kind) Visibility() core1_0.ShaderStageFlags {
	if k == Compute {
		return core1_0.StageCompute
	}
	return core1_0.StageVertex | core1_0.StageFragment
}

// ClassifyStages validates a stage set and reports which kind of pipeline it
// builds.
func ClassifyStages(stages []ShaderStage) (Kind, error) {
	var vertex, fragment, compute int
	for _, stage := range stages {
		switch stage {
		case StageVertex:
			vertex++
		case StageFragment:
			fragment++
		case StageCompute:
			compute++
		default:
			return Graphics, errors.Wrapf(ErrInvalidStages, "unknown stage %d", int(stage))
		}
	}

	switch {
	case compute == 1 && vertex == 0 && fragment == 0:
		return Compute, nil
	case compute == 0 && vertex == 1 && fragment == 1:
		return Graphics, nil
	}

	return Graphics, errors.Wrapf(ErrInvalidStages, "%d vertex, %d fragment, %d compute", vertex, fragment, compute)
}

// RequireKind validates a stage set and checks it builds the wanted kind.
func RequireKind(stages []ShaderStage, want Kind) error {
	kind, err := ClassifyStages(stages)
	if err != nil {
		return err
	}
	if kind != want {
		return errors.Wrapf(ErrInvalidStages, "%s stages given to a %s pass", kind, want)
	}
	return nil
}
