package resize

import (
	"context"
	"time"

	"github.com/Skryldev/image-resizer/core"
	apperrors "github.com/Skryldev/image-resizer/errors"
)

// Pipeline executes an ordered sequence of Operations against one entity,
// with hook support.  Failure decisions (abort, retry with other parameters,
// degrade quality) belong to the caller; the pipeline stops at the first
// error and performs no recovery of its own.
type Pipeline struct {
	ops   []Operation
	hooks []core.Hook
}

// New returns an empty Pipeline.
func New() *Pipeline { return &Pipeline{} }

// Use appends operations to the pipeline.  Returns the same Pipeline for
// chaining.
func (p *Pipeline) Use(ops ...Operation) *Pipeline {
	p.ops = append(p.ops, ops...)
	return p
}

// AddHook registers an observer.
func (p *Pipeline) AddHook(h core.Hook) *Pipeline {
	p.hooks = append(p.hooks, h)
	return p
}

// Run applies the operations to img in order.  It returns per-operation
// timing observations; on error the entity keeps its last successfully
// installed representation and the caller decides whether to continue with
// it or release it.
func (p *Pipeline) Run(ctx context.Context, img *core.Image) (map[string]time.Duration, error) {
	timings := make(map[string]time.Duration, len(p.ops))

	for _, op := range p.ops {
		if err := ctx.Err(); err != nil {
			return timings, apperrors.Wrap(apperrors.CategoryBackend, op.Name(), err)
		}

		p.callBefore(ctx, op.Name(), img)
		start := time.Now()
		err := op.Apply(ctx, img)
		elapsed := time.Since(start)
		timings[op.Name()] = elapsed
		p.callAfter(ctx, op.Name(), img, elapsed, err)

		if err != nil {
			return timings, err
		}
	}
	return timings, nil
}

// Clone returns a shallow copy so pipeline templates can be reused safely
// across goroutines.
func (p *Pipeline) Clone() *Pipeline {
	cp := &Pipeline{
		ops:   make([]Operation, len(p.ops)),
		hooks: make([]core.Hook, len(p.hooks)),
	}
	copy(cp.ops, p.ops)
	copy(cp.hooks, p.hooks)
	return cp
}

func (p *Pipeline) callBefore(ctx context.Context, name string, img *core.Image) {
	for _, h := range p.hooks {
		h.BeforeOp(ctx, name, img)
	}
}

func (p *Pipeline) callAfter(ctx context.Context, name string, img *core.Image, d time.Duration, err error) {
	for _, h := range p.hooks {
		h.AfterOp(ctx, name, img, d, err)
	}
}
