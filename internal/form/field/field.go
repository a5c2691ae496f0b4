// Package field implements the per-field binding over the form store:
// value writes, the debounced validation pipeline, and error display
// gating. Each binding owns a cancellable debounce timer and an epoch
// counter so a validation result scheduled before a newer change can
// never commit (last-scheduled-wins, not last-resolved-wins).
package field

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/plumecms/plume/internal/form"
	"github.com/plumecms/plume/internal/form/validate"
)

// DefaultDebounce is the quiet period before a pending validation runs.
const DefaultDebounce = 150 * time.Millisecond

// Condition decides whether a field is active given the current form
// data. Inactive fields skip validation and report passthrough validity.
type Condition func(data, siblingData map[string]any) bool

// Event mimics a DOM change event payload so callers can hand a binding
// either a raw value or the event that carried it.
type Event struct {
	Target Target
}

// Target is the event's originating control.
type Target struct {
	Value any
}

// Options configures a binding.
type Options struct {
	// Path is the field's dot-delimited address. Required.
	Path string
	// Initial is the field's starting value.
	Initial any
	// Validate is the field's validator; nil means always valid.
	Validate validate.Func
	// Condition gates the field; nil means always active.
	Condition Condition
	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	// DocumentID, User and Operation are the document context handed to
	// validators.
	DocumentID string
	User       map[string]any
	Operation  validate.Operation

	Logger zerolog.Logger
}

// Binding adapts one field path on a store.
type Binding struct {
	store     *form.Store
	path      string
	validate  validate.Func
	condition Condition
	interval  time.Duration

	docID string
	user  map[string]any
	op    validate.Operation
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	timer        *time.Timer
	epoch        uint64
	modifiedOnce bool
	closed       bool
}

// New registers the field on the store and returns its binding.
func New(store *form.Store, opts Options) (*Binding, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("field: empty path")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Operation == "" {
		opts.Operation = validate.OperationUpdate
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Binding{
		store:     store,
		path:      opts.Path,
		validate:  opts.Validate,
		condition: opts.Condition,
		interval:  opts.Debounce,
		docID:     opts.DocumentID,
		user:      opts.User,
		op:        opts.Operation,
		log:       opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	store.Register(opts.Path, opts.Initial)
	store.RegisterValidator(opts.Path, b.validateNow)
	return b, nil
}

// Path returns the field's path.
func (b *Binding) Path() string {
	return b.path
}

// SetValue writes a new value and schedules validation. It accepts
// either a raw value or an event-like payload, extracting target.value
// when present. The first write marks the form modified.
func (b *Binding) SetValue(v any) {
	b.set(v, false)
}

// SetValueSkipModify writes a value without touching the form's
// modified flag, for programmatic writes that are not user edits.
func (b *Binding) SetValueSkipModify(v any) {
	b.set(v, true)
}

func (b *Binding) set(v any, skipModify bool) {
	value := extractValue(v)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	markModified := !skipModify && !b.modifiedOnce
	if markModified {
		b.modifiedOnce = true
	}
	b.mu.Unlock()

	if markModified {
		b.store.SetModified()
	}
	b.store.Dispatch(form.Action{Path: b.path, Value: value, SetValue: true})
	b.Revalidate()
}

// extractValue unwraps event-like payloads down to the carried value.
func extractValue(v any) any {
	switch ev := v.(type) {
	case Event:
		return ev.Target.Value
	case *Event:
		return ev.Target.Value
	case map[string]any:
		if target, ok := ev["target"].(map[string]any); ok {
			if val, ok := target["value"]; ok {
				return val
			}
		}
	}
	return v
}

// Revalidate restarts the debounce timer. Value writes call this; the
// owner also calls it when an external validation dependency (user,
// operation, condition input) changes.
func (b *Binding) Revalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.epoch++
	epoch := b.epoch
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.interval, func() {
		b.run(epoch)
	})
}

// run executes one scheduled validation. The epoch is checked before
// the validator runs and again before the result commits, so a result
// superseded while awaiting the validator is discarded.
func (b *Binding) run(epoch uint64) {
	b.mu.Lock()
	if b.closed || epoch != b.epoch {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	valid, message := b.evaluate(b.ctx)

	b.mu.Lock()
	if b.closed || epoch != b.epoch {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	b.commit(valid, message)
}

// evaluate runs condition and validator against the current store
// state. A panicking validator marks the field invalid with a generic
// message rather than taking down the form.
func (b *Binding) evaluate(ctx context.Context) (valid bool, message string) {
	st, ok := b.store.Get(b.path)
	if !ok {
		return true, ""
	}
	data := b.store.Data()
	sibling := b.store.SiblingData(b.path)

	if b.condition != nil && !b.condition(data, sibling) {
		return true, ""
	}
	if b.validate == nil {
		return true, ""
	}

	res, err := b.safeValidate(ctx, st.Value, validate.Args{
		ID:          b.docID,
		User:        b.user,
		Data:        data,
		SiblingData: sibling,
		Operation:   b.op,
	})
	if err != nil {
		b.log.Error().Str("path", b.path).Err(err).Msg("field validator failed")
		return false, "validation failed"
	}
	return res.Valid, res.Message
}

func (b *Binding) safeValidate(ctx context.Context, value any, args validate.Args) (res validate.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validator panic: %v", r)
		}
	}()
	return b.validate(ctx, value, args)
}

// commit dispatches the validity result only when it differs from the
// field's current validity. A message change on a field that stays
// invalid is therefore dropped; that asymmetry is long-standing
// behavior callers rely on not re-rendering for.
func (b *Binding) commit(valid bool, message string) {
	st, ok := b.store.Get(b.path)
	if !ok {
		return
	}
	if st.Valid == valid {
		return
	}
	b.store.Dispatch(form.Action{Path: b.path, SetValidity: true, Valid: valid, ErrorMessage: message})
}

// validateNow is the synchronous validator the store runs on submit. It
// supersedes any pending debounced validation.
func (b *Binding) validateNow(ctx context.Context) (bool, string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return true, ""
	}
	b.epoch++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
	return b.evaluate(ctx)
}

// Value returns the field's current value.
func (b *Binding) Value() any {
	st, _ := b.store.Get(b.path)
	return st.Value
}

// InitialValue returns the value the field was initialized with.
func (b *Binding) InitialValue() any {
	st, _ := b.store.Get(b.path)
	return st.InitialValue
}

// Valid returns the field's committed validity.
func (b *Binding) Valid() bool {
	st, ok := b.store.Get(b.path)
	if !ok {
		return true
	}
	return st.Valid
}

// ErrorMessage returns the committed error message, if any.
func (b *Binding) ErrorMessage() string {
	st, _ := b.store.Get(b.path)
	return st.ErrorMessage
}

// ShowError reports whether the error should be visible: only after a
// submission attempt, regardless of when validation failed.
func (b *Binding) ShowError() bool {
	return !b.Valid() && b.store.Submitted()
}

// Close cancels any pending debounce and in-flight validation and
// destroys the field's state. No store mutation can happen after Close
// returns, on any exit path.
func (b *Binding) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.epoch++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	b.cancel()
	b.store.Deregister(b.path)
}
