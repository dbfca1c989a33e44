package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/gpucore/internal/memory"
	"github.com/vkngwrapper/gpucore/internal/pipeline"
	"github.com/vkngwrapper/gpucore/internal/record"
)

var (
	// ErrUndefinedUsage is returned when a buffer is created without usage
	// flags.
	ErrUndefinedUsage = errors.New("buffer usage is undefined")
	// ErrFormatUnsupported is returned when a texture format lacks a
	// feature its usage requires.
	ErrFormatUnsupported = errors.New("format does not support the requested usage")
	ErrNoMemoryType      = memory.ErrNoMemoryType
	ErrInvalidStages     = pipeline.ErrInvalidStages
	ErrRecordingActive   = record.ErrRecordingActive
	// ErrMissingCapability is returned when a required extension, layer,
	// queue or format capability is not available.
	ErrMissingCapability = errors.New("missing required capability")

	// ErrInvalidHandle is returned for zero, freed, or wrongly typed handles.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrNotRecorded is returned when a command buffer that was never
	// successfully ended is executed or waited on.
	ErrNotRecorded = errors.New("command buffer has not been recorded")
	// ErrNotExecuted is returned when waiting on a recorded command buffer
	// that was never executed.
	ErrNotExecuted = errors.New("command buffer has not been executed")
	// ErrBarrierInRenderPass is recorded for Barrier while a render pass is
	// open.
	ErrBarrierInRenderPass = record.ErrBarrierInRenderPass

	ErrScopeClosed  = record.ErrScopeClosed
	ErrInlineUpdate = record.ErrInlineUpdate
	ErrNotRecording = record.ErrNotRecording
	ErrNoPlatform   = errors.New("no windowing platform configured")
	ErrTimeout      = errors.New("timed out waiting for command buffer")
)
