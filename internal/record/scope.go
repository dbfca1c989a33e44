package record

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/gpucore/internal/pipeline"
)

// Scope is the window in which input sets can be bound against, and work
// issued through, the pass that opened it. It closes when the session sets
// another pass or ends. A render scope also closes when its render pass is
// ended by a transfer or EndRenderPass.
type Scope struct {
	session    *Session
	generation int
	kind       pipeline.Kind
}

func (sc *Scope) open(want pipeline.Kind) bool {
	s := sc.session
	if !s.ok() {
		return false
	}
	if sc.generation != s.generation {
		s.Fail(ErrScopeClosed)
		return false
	}
	if sc.kind != want {
		s.Fail(errors.Newf("%s command issued in a %s scope", want, sc.kind))
		return false
	}
	return true
}

// BindSet binds a descriptor set at index against the scope's pass layout.
// id identifies the input set for bookkeeping.
func (sc *Scope) BindSet(index int, set core1_0.DescriptorSet, id uint64) {
	s := sc.session
	if !s.ok() {
		return
	}
	if sc.generation != s.generation {
		s.Fail(ErrScopeClosed)
		return
	}

	s.cb.CmdBindDescriptorSets(sc.kind.BindPoint(), s.active.Layout, index, []core1_0.DescriptorSet{set}, nil)
	s.bound[index] = id
}

func (sc *Scope) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	if !sc.open(pipeline.Graphics) {
		return
	}
	sc.session.cb.CmdDraw(vertexCount, instanceCount, uint32(firstVertex), uint32(firstInstance))
}

func (sc *Scope) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	if !sc.open(pipeline.Graphics) {
		return
	}
	sc.session.cb.CmdDrawIndexed(indexCount, instanceCount, uint32(firstIndex), vertexOffset, uint32(firstInstance))
}

func (sc *Scope) DrawIndirect(buffer core1_0.Buffer, offset, drawCount, stride int) {
	if !sc.open(pipeline.Graphics) {
		return
	}
	sc.session.cb.CmdDrawIndirect(buffer, offset, drawCount, stride)
}

func (sc *Scope) DrawIndexedIndirect(buffer core1_0.Buffer, offset, drawCount, stride int) {
	if !sc.open(pipeline.Graphics) {
		return
	}
	sc.session.cb.CmdDrawIndexedIndirect(buffer, offset, drawCount, stride)
}

func (sc *Scope) Dispatch(x, y, z int) {
	if !sc.open(pipeline.Compute) {
		return
	}
	sc.session.cb.CmdDispatch(x, y, z)
}

// Session returns the session the scope belongs to.
func (sc *Scope) Session() *Session {
	return sc.session
}
