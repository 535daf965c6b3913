// Package router keeps one pipeline state slot per lens.
//
// Every request gets a RequestID from Begin. A slot only accepts an outcome
// tagged with the id it is currently waiting for, so a reply that arrives
// after a newer request re-armed the same slot is dropped. Network replies can
// complete in any order; this check is the only ordering guarantee.
package router

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/helmcode/labellens/pkg/model"
)

// Outcome is the settled result of one request: an analysis or a user-facing message.
// Audio may accompany a failed outcome when the reply carried a clip.
type Outcome struct {
	Analysis *model.Analysis
	Message  string
	Audio    *model.Audio
}

func Ok(a model.Analysis) Outcome { return Outcome{Analysis: &a} }

func Err(message string) Outcome { return Outcome{Message: message} }

// Listener is notified after every slot transition, in transition order.
// It runs while the router is locked and must not call back into the Router.
type Listener func(lens model.Lens, state model.PipelineState)

type listenerEntry struct {
	id int
	fn Listener
}

// Router owns the per-lens slots. Safe for concurrent use.
type Router struct {
	mu        sync.Mutex
	lastID    model.RequestID
	slots     map[model.Lens]model.PipelineState
	active    model.Lens
	listeners []listenerEntry
	nextLID   int
	logger    *zap.Logger
}

func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		slots:  make(map[model.Lens]model.PipelineState),
		active: model.AllLenses()[0],
		logger: logger,
	}
	for _, l := range model.AllLenses() {
		r.slots[l] = model.IdleState()
	}
	return r
}

// Begin allocates the next request id and moves the lens slot to loading,
// whatever it held before. Any request still in flight for the lens is
// superseded from this point on.
func (r *Router) Begin(lens model.Lens) (model.RequestID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.slots[lens]
	if !ok {
		return 0, fmt.Errorf("unknown lens %q", lens)
	}

	r.lastID++
	id := r.lastID
	if prev.Status == model.StatusLoading {
		r.logger.Debug("Superseding in-flight request",
			zap.String("lens", string(lens)),
			zap.Uint64("old_request_id", uint64(prev.RequestID)),
			zap.Uint64("request_id", uint64(id)))
	}
	r.set(lens, model.LoadingState(id))
	return id, nil
}

// Apply settles the slot for lens if it is still waiting for id.
// It reports whether the outcome was applied; false means the reply was stale.
func (r *Router) Apply(id model.RequestID, lens model.Lens, out Outcome) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.slots[lens]
	if !ok || cur.Status != model.StatusLoading || cur.RequestID != id {
		r.logger.Debug("Discarding stale reply",
			zap.String("lens", string(lens)),
			zap.Uint64("request_id", uint64(id)),
			zap.Uint64("current_request_id", uint64(cur.RequestID)),
			zap.String("status", string(cur.Status)))
		return false
	}

	if out.Analysis != nil {
		r.set(lens, model.ReadyState(id, *out.Analysis))
	} else {
		st := model.ErrorState(id, out.Message)
		st.Audio = out.Audio
		r.set(lens, st)
	}
	return true
}

// State returns the slot for lens. Unknown lenses read as idle.
func (r *Router) State(lens model.Lens) model.PipelineState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[lens]; ok {
		return s
	}
	return model.IdleState()
}

// Snapshot returns every slot.
func (r *Router) Snapshot() map[model.Lens]model.PipelineState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[model.Lens]model.PipelineState, len(r.slots))
	for l, s := range r.slots {
		out[l] = s
	}
	return out
}

// SetActiveLens changes which slot Current reads. Slot contents are untouched.
func (r *Router) SetActiveLens(lens model.Lens) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[lens]; !ok {
		return fmt.Errorf("unknown lens %q", lens)
	}
	r.active = lens
	return nil
}

func (r *Router) ActiveLens() model.Lens {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Current returns the active lens and its slot.
func (r *Router) Current() (model.Lens, model.PipelineState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.slots[r.active]
}

// Subscribe registers fn for slot transitions and returns a func that removes it.
func (r *Router) Subscribe(fn Listener) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextLID++
	id := r.nextLID
	r.listeners = append(r.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, l := range r.listeners {
			if l.id == id {
				r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
				return
			}
		}
	}
}

// set stores a slot state and notifies listeners. Callers hold r.mu.
func (r *Router) set(lens model.Lens, s model.PipelineState) {
	r.slots[lens] = s
	for _, l := range r.listeners {
		l.fn(lens, s)
	}
}
