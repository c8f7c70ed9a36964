package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ballotdesk.org/internal/api"
	"ballotdesk.org/internal/audit"
	"ballotdesk.org/internal/ids"
	"ballotdesk.org/internal/stream"
)

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is the single-slot transient message shown to the admin.
// A new notification replaces any currently displayed one.
type Notification struct {
	Message  string
	Severity Severity
	Visible  bool
}

// DialogMode distinguishes the create and update edit dialogs.
type DialogMode int

const (
	ModeCreate DialogMode = iota
	ModeUpdate
)

func (m DialogMode) String() string {
	if m == ModeCreate {
		return "create"
	}
	return "update"
}

// Dialog is the in-progress edit buffer. Draft is distinct from any
// committed record until submission succeeds.
type Dialog[T api.Resource] struct {
	Mode    DialogMode
	Draft   T
	Visible bool
}

var (
	// ErrNoDialog indicates Submit was called with no open edit dialog.
	ErrNoDialog = errors.New("console: no dialog open")
	// ErrDialogOpen indicates a second dialog was requested while one is
	// visible. At most one dialog is visible at a time.
	ErrDialogOpen = errors.New("console: another dialog is open")
	// ErrNoPendingDelete indicates ConfirmDelete without RequestDelete.
	ErrNoPendingDelete = errors.New("console: no delete pending")
	// ErrClosed indicates the controller was discarded.
	ErrClosed = errors.New("console: controller closed")
)

// Controller is the generic state machine behind every list screen. It owns
// the fetched collection, the loading flag, the active notification and the
// create/update/delete dialog workflow. After every successful mutation the
// collection is refetched in full, so the displayed list always matches
// server state; there is no optimistic local merge.
type Controller[T api.Resource] struct {
	client   api.ResourceClient[T]
	resource string
	scope    string

	events         *stream.Stream
	onUnauthorized func()

	mu              sync.Mutex
	collection      []T
	loading         bool
	notification    Notification
	dialog          Dialog[T]
	pendingDeleteID string
	closed          bool
	generation      uint64
}

// Option configures a Controller.
type Option[T api.Resource] func(*Controller[T])

// WithEvents publishes a change event after every successful mutation.
func WithEvents[T api.Resource](s *stream.Stream) Option[T] {
	return func(c *Controller[T]) { c.events = s }
}

// WithOnUnauthorized installs the forced-logout hook invoked when the
// server rejects the credential with a 401.
func WithOnUnauthorized[T api.Resource](fn func()) Option[T] {
	return func(c *Controller[T]) { c.onUnauthorized = fn }
}

// NewController binds a controller to a resource client. The resource name
// is used in notifications and audit events; scope narrows the collection
// (empty for unscoped resources).
func NewController[T api.Resource](client api.ResourceClient[T], resource, scope string, opts ...Option[T]) *Controller[T] {
	c := &Controller[T]{client: client, resource: resource, scope: scope}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches the collection. On failure the previous collection is kept
// and an error notification is shown. The loading flag covers the whole
// call and is always cleared.
func (c *Controller[T]) Load(ctx context.Context) error {
	gen, err := c.begin()
	if err != nil {
		return err
	}

	items, err := c.client.List(ctx, c.scope)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale(gen) {
		return ErrClosed
	}
	c.loading = false
	if err != nil {
		c.failLocked(err, fmt.Sprintf("Failed to fetch %ss.", c.resource))
		return err
	}
	c.collection = items
	return nil
}

// OpenDialog opens the edit dialog. ModeCreate seeds an empty draft unless
// one is given; ModeUpdate seeds the draft from the selected row. The seed
// is copied by value, so editing the draft never mutates the displayed row.
func (c *Controller[T]) OpenDialog(mode DialogMode, seed T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.dialog.Visible || c.pendingDeleteID != "" {
		return ErrDialogOpen
	}
	c.dialog = Dialog[T]{Mode: mode, Draft: seed, Visible: true}
	return nil
}

// SetDraft replaces the edit buffer while the dialog is open.
func (c *Controller[T]) SetDraft(draft T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dialog.Visible {
		return ErrNoDialog
	}
	c.dialog.Draft = draft
	return nil
}

// CloseDialog discards the edit buffer without submitting.
func (c *Controller[T]) CloseDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.dialog = Dialog[T]{Draft: zero}
}

// Submit commits the open dialog. On success the dialog closes, a success
// notification is shown and the collection is refetched. On failure the
// dialog stays open with the draft intact so the admin can retry.
func (c *Controller[T]) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.dialog.Visible {
		c.mu.Unlock()
		return ErrNoDialog
	}
	mode := c.dialog.Mode
	draft := c.dialog.Draft
	gen := c.generation
	c.loading = true
	c.mu.Unlock()

	var (
		committed T
		err       error
		action    stream.Action
	)
	switch mode {
	case ModeCreate:
		committed, err = c.client.Create(ctx, c.scope, draft)
		action = stream.ActionCreate
	default:
		committed, err = c.client.Update(ctx, c.scope, draft.ResourceID(), draft)
		action = stream.ActionUpdate
	}

	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.stale(gen) {
			return ErrClosed
		}
		c.loading = false
		c.failLocked(err, fmt.Sprintf("Failed to %s %s.", mode, c.resource))
		return err
	}

	_ = audit.LogEvent(audit.WithRequestID(ctx, ids.New()), c.resource+"."+string(action), map[string]any{
		"id":    committed.ResourceID(),
		"scope": c.scope,
	})
	if c.events != nil {
		c.events.Publish(stream.Event{
			Resource: c.resource,
			Action:   action,
			ID:       committed.ResourceID(),
			Scope:    c.scope,
		})
	}

	items, listErr := c.client.List(ctx, c.scope)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale(gen) {
		return ErrClosed
	}
	c.loading = false
	var zero T
	c.dialog = Dialog[T]{Draft: zero}
	c.notification = Notification{
		Message:  fmt.Sprintf("%s %sd successfully.", title(c.resource), mode),
		Severity: SeveritySuccess,
		Visible:  true,
	}
	if listErr != nil {
		c.failLocked(listErr, fmt.Sprintf("Failed to fetch %ss.", c.resource))
		return listErr
	}
	c.collection = items
	return nil
}

// RequestDelete stages a deletion behind an explicit confirmation step.
func (c *Controller[T]) RequestDelete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if id == "" {
		return errors.New("console: id is required")
	}
	if c.dialog.Visible || c.pendingDeleteID != "" {
		return ErrDialogOpen
	}
	c.pendingDeleteID = id
	return nil
}

// CancelDelete dismisses the confirmation prompt without deleting.
func (c *Controller[T]) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDeleteID = ""
}

// ConfirmDelete removes the staged record. The confirmation prompt always
// closes and the pending id is always cleared, whatever the outcome; the
// collection is refetched after a successful delete.
func (c *Controller[T]) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	id := c.pendingDeleteID
	if id == "" {
		c.mu.Unlock()
		return ErrNoPendingDelete
	}
	gen := c.generation
	c.loading = true
	c.mu.Unlock()

	err := c.client.Remove(ctx, c.scope, id)

	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.stale(gen) {
			return ErrClosed
		}
		c.loading = false
		c.pendingDeleteID = ""
		c.failLocked(err, fmt.Sprintf("Failed to delete %s.", c.resource))
		return err
	}

	_ = audit.LogEvent(audit.WithRequestID(ctx, ids.New()), c.resource+".delete", map[string]any{
		"id":    id,
		"scope": c.scope,
	})
	if c.events != nil {
		c.events.Publish(stream.Event{
			Resource: c.resource,
			Action:   stream.ActionDelete,
			ID:       id,
			Scope:    c.scope,
		})
	}

	items, listErr := c.client.List(ctx, c.scope)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale(gen) {
		return ErrClosed
	}
	c.loading = false
	c.pendingDeleteID = ""
	c.notification = Notification{
		Message:  fmt.Sprintf("%s deleted successfully.", title(c.resource)),
		Severity: SeveritySuccess,
		Visible:  true,
	}
	if listErr != nil {
		c.failLocked(listErr, fmt.Sprintf("Failed to fetch %ss.", c.resource))
		return listErr
	}
	c.collection = items
	return nil
}

// DismissNotification hides the current notification.
func (c *Controller[T]) DismissNotification() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notification.Visible = false
}

// Close discards the controller. Any state update from a still-pending call
// becomes a no-op; in-flight requests themselves are not cancelled.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.generation++
}

// Collection returns a copy of the last successfully fetched list.
func (c *Controller[T]) Collection() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.collection))
	copy(out, c.collection)
	return out
}

// Loading reports whether a call issued by this controller is outstanding.
func (c *Controller[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Notification returns the current single-slot notification.
func (c *Controller[T]) Notification() Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notification
}

// Dialog returns the current edit dialog state.
func (c *Controller[T]) Dialog() Dialog[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialog
}

// PendingDeleteID returns the id staged for deletion, if any.
func (c *Controller[T]) PendingDeleteID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingDeleteID
}

// begin marks a call in flight and snapshots the generation.
func (c *Controller[T]) begin() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	c.loading = true
	return c.generation, nil
}

func (c *Controller[T]) stale(gen uint64) bool {
	return c.closed || gen != c.generation
}

// failLocked records an error notification and fires the forced-logout hook
// on credential rejection. Callers hold the mutex.
func (c *Controller[T]) failLocked(err error, message string) {
	c.notification = Notification{Message: message, Severity: SeverityError, Visible: true}
	if errors.Is(err, api.ErrUnauthorized) && c.onUnauthorized != nil {
		hook := c.onUnauthorized
		go hook()
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
