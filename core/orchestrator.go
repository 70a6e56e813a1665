package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/text/cases"
)

// Gateway is the remote API contract of one resource type. Deactivate is the
// only removal path: records are flagged inactive, never destroyed.
type Gateway[T any, F any] interface {
	GetAll(ctx context.Context) ([]T, error)
	Create(ctx context.Context, fields F) (T, error)
	Update(ctx context.Context, id int64, fields F) (T, error)
	Deactivate(ctx context.Context, id int64) error
}

// SessionGuard is what a screen needs from the auth controller.
type SessionGuard interface {
	SessionReader
	ValidateToken(ctx context.Context) bool
	Watch(ctx context.Context) *Watch
	Expire(ctx context.Context)
}

// Confirmer asks the operator to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Texts are the operator-facing strings of one resource screen.
type Texts struct {
	Created       string
	Updated       string
	Deleted       string
	LoadFailed    string
	SaveFailed    string
	DeleteFailed  string
	ConfirmDelete string // formatted with the record label
}

// Resource describes a record type to the generic screen.
type Resource[T any] struct {
	ID           func(T) int64
	Label        func(T) string
	Active       func(T) bool
	SearchFields func(T) []string
	Texts        Texts
}

// ScreenState is the lifecycle state of an orchestrator.
type ScreenState string

const (
	StateLoading  ScreenState = "loading"
	StateReady    ScreenState = "ready"
	StateFormOpen ScreenState = "form_open"
	StateClosed   ScreenState = "closed"
)

// Form is the open create/edit form. Editing is nil when creating.
type Form[T any] struct {
	Editing *T
}

// IsEdit reports whether the form edits an existing record.
func (f Form[T]) IsEdit() bool { return f.Editing != nil }

// AuxiliaryLoader fetches reference data after the primary collection. A
// failure is logged and must leave the loader's data empty.
type AuxiliaryLoader func(ctx context.Context) error

// Option configures an orchestrator.
type Option func(*screenOptions)

type screenOptions struct {
	clock clockwork.Clock
	aux   []AuxiliaryLoader
}

// WithClock sets the clock used for the self-clearing tasks.
func WithClock(c clockwork.Clock) Option {
	return func(o *screenOptions) { o.clock = c }
}

// WithAuxiliary adds a reference-data loader run after each successful load.
func WithAuxiliary(l AuxiliaryLoader) Option {
	return func(o *screenOptions) { o.aux = append(o.aux, l) }
}

const (
	slotMessage = "message"
	slotRecent  = "recent"
)

// Orchestrator drives one list/form screen: it owns the loaded collection,
// the search term, the open form and the transient message of that screen.
type Orchestrator[T any, F any] struct {
	res   Resource[T]
	gw    Gateway[T, F]
	guard SessionGuard
	aux   []AuxiliaryLoader

	mu      sync.Mutex
	state   ScreenState
	closed  bool
	loaded  bool
	items   []T
	search  string
	form    *Form[T]
	message *Message
	recent  *int64
	tasks   *delayedTasks
	clock   clockwork.Clock
	watch   *Watch
}

func NewOrchestrator[T any, F any](res Resource[T], gw Gateway[T, F], guard SessionGuard, opts ...Option) *Orchestrator[T, F] {
	so := screenOptions{}
	for _, opt := range opts {
		opt(&so)
	}
	if so.clock == nil {
		so.clock = clockwork.NewRealClock()
	}
	return &Orchestrator[T, F]{
		res:   res,
		gw:    gw,
		guard: guard,
		aux:   so.aux,
		state: StateLoading,
		tasks: newDelayedTasks(so.clock),
		clock: so.clock,
	}
}

// Mount starts the session poll for the screen's lifetime and runs the first
// load. ctx bounds the poll; Close ends it earlier.
func (o *Orchestrator[T, F]) Mount(ctx context.Context) error {
	if err := o.checkOpen(); err != nil {
		return err
	}
	w := o.guard.Watch(ctx)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		w.Stop()
		return ErrClosed
	}
	o.watch = w
	o.mu.Unlock()

	if w.Expired() {
		return ErrSessionExpired
	}
	return o.Load(ctx)
}

// Load fetches the full collection. On failure the previous collection stays
// visible; a failed first load shows an empty one.
func (o *Orchestrator[T, F]) Load(ctx context.Context) error {
	if err := o.checkOpen(); err != nil {
		return err
	}
	if !o.guard.ValidateToken(ctx) {
		return ErrSessionExpired
	}
	token := o.token()

	o.mu.Lock()
	o.state = StateLoading
	if o.message != nil && o.message.Kind == MessageError {
		o.message = nil
	}
	o.mu.Unlock()

	items, err := o.gw.GetAll(ctx)

	if !o.sameSession(token) {
		o.settle()
		return ErrSessionExpired
	}
	if err != nil {
		o.mu.Lock()
		if !o.loaded {
			o.items = []T{}
			o.loaded = true
		}
		o.settleLocked()
		o.mu.Unlock()
		o.fail(ctx, err, o.res.Texts.LoadFailed)
		return err
	}

	if items == nil {
		items = []T{}
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.items = items
	o.loaded = true
	o.settleLocked()
	o.mu.Unlock()

	for _, l := range o.aux {
		if err := l(ctx); err != nil {
			log.Printf("[screen] auxiliary load failed: %v", err)
		}
	}
	return nil
}

// Create opens an empty form.
func (o *Orchestrator[T, F]) Create() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.form = &Form[T]{}
	o.state = StateFormOpen
	return nil
}

// Edit opens the form pre-populated with item.
func (o *Orchestrator[T, F]) Edit(item T) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	editing := item
	o.form = &Form[T]{Editing: &editing}
	o.state = StateFormOpen
	return nil
}

// Cancel closes the form without saving.
func (o *Orchestrator[T, F]) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.form = nil
	o.settleLocked()
}

// Submit saves the open form. On failure the form stays open and an error
// message is shown. The saved record is also returned alongside
// ErrReloadFailed.
func (o *Orchestrator[T, F]) Submit(ctx context.Context, fields F) (T, error) {
	var zero T
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return zero, ErrClosed
	}
	form := o.form
	o.mu.Unlock()
	if form == nil {
		return zero, ErrFormClosed
	}
	if !o.guard.ValidateToken(ctx) {
		return zero, ErrSessionExpired
	}
	if v, ok := any(fields).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			o.fail(ctx, err, o.res.Texts.SaveFailed)
			return zero, err
		}
	}

	token := o.token()
	var (
		saved T
		err   error
	)
	if form.IsEdit() {
		saved, err = o.gw.Update(ctx, o.res.ID(*form.Editing), fields)
	} else {
		saved, err = o.gw.Create(ctx, fields)
	}
	if !o.sameSession(token) {
		return zero, ErrSessionExpired
	}
	if err != nil {
		o.fail(ctx, err, o.res.Texts.SaveFailed)
		return zero, err
	}
	return saved, o.OnFormSuccess(ctx, saved, form.IsEdit())
}

// OnFormSuccess reloads the collection, flashes the success message, marks
// saved as recently updated and closes the form. When the reload fails the
// load error stays on screen instead of the flash and the returned error
// wraps ErrReloadFailed.
func (o *Orchestrator[T, F]) OnFormSuccess(ctx context.Context, saved T, isEdit bool) error {
	loadErr := o.Load(ctx)
	if errors.Is(loadErr, ErrSessionExpired) || errors.Is(loadErr, ErrClosed) {
		return loadErr
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if loadErr == nil {
		text := o.res.Texts.Created
		if isEdit {
			text = o.res.Texts.Updated
		}
		o.flashLocked(MessageSuccess, text)
	}

	marker := o.res.ID(saved)
	o.recent = &marker
	o.tasks.schedule(slotRecent, RecentlyUpdatedTTL, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.closed && o.recent == &marker {
			o.recent = nil
		}
	})

	o.form = nil
	o.settleLocked()
	if loadErr != nil {
		return fmt.Errorf("%w: %w", ErrReloadFailed, loadErr)
	}
	return nil
}

// Delete deactivates item after the operator confirms. It reports whether the
// record was deactivated; a declined confirmation is not an error.
func (o *Orchestrator[T, F]) Delete(ctx context.Context, item T, c Confirmer) (bool, error) {
	if err := o.checkOpen(); err != nil {
		return false, err
	}
	if !o.guard.ValidateToken(ctx) {
		return false, ErrSessionExpired
	}
	if o.res.Active != nil && !o.res.Active(item) {
		return false, ErrAlreadyInactive
	}
	if c == nil || !c.Confirm(fmt.Sprintf(o.res.Texts.ConfirmDelete, o.res.Label(item))) {
		return false, nil
	}

	token := o.token()
	err := o.gw.Deactivate(ctx, o.res.ID(item))
	if !o.sameSession(token) {
		return false, ErrSessionExpired
	}
	if err != nil {
		o.fail(ctx, err, o.res.Texts.DeleteFailed)
		return false, err
	}

	loadErr := o.Load(ctx)
	if errors.Is(loadErr, ErrSessionExpired) || errors.Is(loadErr, ErrClosed) {
		return true, loadErr
	}
	if loadErr != nil {
		return true, fmt.Errorf("%w: %w", ErrReloadFailed, loadErr)
	}
	o.mu.Lock()
	if !o.closed {
		o.flashLocked(MessageSuccess, o.res.Texts.Deleted)
	}
	o.mu.Unlock()
	return true, nil
}

// Search sets the filter term applied by Visible.
func (o *Orchestrator[T, F]) Search(term string) {
	o.mu.Lock()
	o.search = term
	o.mu.Unlock()
}

// Visible returns the loaded collection filtered by the search term.
func (o *Orchestrator[T, F]) Visible() []T {
	o.mu.Lock()
	items := append([]T(nil), o.items...)
	term := o.search
	o.mu.Unlock()
	return Filter(items, term, o.res.SearchFields)
}

// Items returns the whole loaded collection.
func (o *Orchestrator[T, F]) Items() []T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]T(nil), o.items...)
}

func (o *Orchestrator[T, F]) State() ScreenState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Form returns the open form, if any.
func (o *Orchestrator[T, F]) Form() (Form[T], bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.form == nil {
		return Form[T]{}, false
	}
	return *o.form, true
}

// Message returns the current transient message, if any.
func (o *Orchestrator[T, F]) Message() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.message == nil {
		return Message{}, false
	}
	return *o.message, true
}

// ClearMessage dismisses the current message.
func (o *Orchestrator[T, F]) ClearMessage() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tasks.cancel(slotMessage)
	o.message = nil
}

// RecentlyUpdated returns the id of the record highlighted after a save.
func (o *Orchestrator[T, F]) RecentlyUpdated() (int64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.recent == nil {
		return 0, false
	}
	return *o.recent, true
}

// Close tears the screen down: the session poll and every pending delayed
// task are stopped and later calls fail with ErrClosed.
func (o *Orchestrator[T, F]) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.state = StateClosed
	o.tasks.stopAll()
	w := o.watch
	o.watch = nil
	o.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

func (o *Orchestrator[T, F]) checkOpen() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	return nil
}

func (o *Orchestrator[T, F]) token() string {
	s, _ := o.guard.Get()
	return s.Token
}

// sameSession reports whether the session a request started under is still
// the current one; responses arriving after a logout are dropped.
func (o *Orchestrator[T, F]) sameSession(token string) bool {
	s, ok := o.guard.Get()
	return ok && s.Token == token
}

// fail turns err into an error message, or into a forced logout when the API
// rejected the session.
func (o *Orchestrator[T, F]) fail(ctx context.Context, err error, fallback string) {
	if errors.Is(err, ErrSessionExpired) {
		o.guard.Expire(ctx)
		return
	}
	log.Printf("[screen] %s: %v", fallback, err)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.flashLocked(MessageError, UserMessage(err, fallback))
}

func (o *Orchestrator[T, F]) flashLocked(kind MessageKind, text string) {
	o.tasks.cancel(slotMessage)
	msg := &Message{Kind: kind, Text: text, CreatedAt: o.clock.Now()}
	o.message = msg
	if kind != MessageSuccess {
		return
	}
	o.tasks.schedule(slotMessage, SuccessMessageTTL, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.closed && o.message == msg {
			o.message = nil
		}
	})
}

func (o *Orchestrator[T, F]) settle() {
	o.mu.Lock()
	o.settleLocked()
	o.mu.Unlock()
}

func (o *Orchestrator[T, F]) settleLocked() {
	switch {
	case o.closed:
		o.state = StateClosed
	case o.form != nil:
		o.state = StateFormOpen
	default:
		o.state = StateReady
	}
}

// Filter keeps the items whose designated fields contain term, ignoring case.
// An empty term keeps everything.
func Filter[T any](items []T, term string, fields func(T) []string) []T {
	term = strings.TrimSpace(term)
	if term == "" || fields == nil {
		return items
	}
	fold := cases.Fold()
	needle := fold.String(term)
	out := make([]T, 0, len(items))
	for _, item := range items {
		for _, f := range fields(item) {
			if strings.Contains(fold.String(f), needle) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}
