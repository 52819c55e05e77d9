package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ToastKind classifies a transient user notification.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastWarning ToastKind = "warning"
	ToastInfo    ToastKind = "info"
)

// DefaultToastDuration is applied when a toast does not set its own.
const DefaultToastDuration = 4 * time.Second

// Toast is a short-lived user-facing message. The Feed owns the ordered
// collection; whichever layer renders toasts schedules Remove after
// Duration elapses and on user dismissal.
type Toast struct {
	ID       string
	Kind     ToastKind
	Title    string
	Message  string
	Duration time.Duration
	OnPress  func()
}

// ToastOption customizes a toast before it is appended to the feed.
type ToastOption func(*Toast)

// WithMessage sets the secondary message line.
func WithMessage(message string) ToastOption {
	return func(t *Toast) {
		t.Message = message
	}
}

// WithDuration overrides the auto-dismiss duration.
func WithDuration(d time.Duration) ToastOption {
	return func(t *Toast) {
		if d > 0 {
			t.Duration = d
		}
	}
}

// WithOnPress attaches a tap handler.
func WithOnPress(fn func()) ToastOption {
	return func(t *Toast) {
		t.OnPress = fn
	}
}

// Notifier is the write side of the notification channel consumed by the
// Manager. No method may fail or panic.
type Notifier interface {
	Show(kind ToastKind, title string, opts ...ToastOption) string
	ShowSuccess(title string, opts ...ToastOption) string
	ShowError(title string, opts ...ToastOption) string
	ShowWarning(title string, opts ...ToastOption) string
	ShowInfo(title string, opts ...ToastOption) string
	Remove(id string)
	ClearAll()
}

type noopNotifier struct{}

func (noopNotifier) Show(ToastKind, string, ...ToastOption) string { return "" }
func (noopNotifier) ShowSuccess(string, ...ToastOption) string     { return "" }
func (noopNotifier) ShowError(string, ...ToastOption) string       { return "" }
func (noopNotifier) ShowWarning(string, ...ToastOption) string     { return "" }
func (noopNotifier) ShowInfo(string, ...ToastOption) string        { return "" }
func (noopNotifier) Remove(string)                                 {}
func (noopNotifier) ClearAll()                                     {}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

type feedSubscriber struct {
	id int
	fn func([]Toast)
}

// Feed is the in-process toast channel: an ordered, insertion-order
// collection of live toasts plus a subscriber list for the rendering layer.
type Feed struct {
	mu      sync.Mutex
	items   []Toast
	subs    []feedSubscriber
	nextSub int
}

var _ Notifier = (*Feed)(nil)

// NewFeed creates an empty notification feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Show appends a toast with a generated unique id and returns the id.
func (f *Feed) Show(kind ToastKind, title string, opts ...ToastOption) string {
	toast := Toast{
		ID:       uuid.NewString(),
		Kind:     kind,
		Title:    title,
		Duration: DefaultToastDuration,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&toast)
		}
	}

	f.mu.Lock()
	f.items = append(f.items, toast)
	snapshot, subs := f.snapshotLocked()
	f.mu.Unlock()

	notifyFeedSubscribers(subs, snapshot)

	return toast.ID
}

// ShowSuccess appends a success toast.
func (f *Feed) ShowSuccess(title string, opts ...ToastOption) string {
	return f.Show(ToastSuccess, title, opts...)
}

// ShowError appends an error toast.
func (f *Feed) ShowError(title string, opts ...ToastOption) string {
	return f.Show(ToastError, title, opts...)
}

// ShowWarning appends a warning toast.
func (f *Feed) ShowWarning(title string, opts ...ToastOption) string {
	return f.Show(ToastWarning, title, opts...)
}

// ShowInfo appends an info toast.
func (f *Feed) ShowInfo(title string, opts ...ToastOption) string {
	return f.Show(ToastInfo, title, opts...)
}

// Remove deletes the toast with the given id. Unknown ids are ignored.
func (f *Feed) Remove(id string) {
	f.mu.Lock()
	removed := false
	for i, item := range f.items {
		if item.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		f.mu.Unlock()
		return
	}
	snapshot, subs := f.snapshotLocked()
	f.mu.Unlock()

	notifyFeedSubscribers(subs, snapshot)
}

// ClearAll empties the collection.
func (f *Feed) ClearAll() {
	f.mu.Lock()
	if len(f.items) == 0 {
		f.mu.Unlock()
		return
	}
	f.items = nil
	snapshot, subs := f.snapshotLocked()
	f.mu.Unlock()

	notifyFeedSubscribers(subs, snapshot)
}

// Items returns a snapshot of the live toasts in insertion order.
func (f *Feed) Items() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Toast(nil), f.items...)
}

// Subscribe registers a callback invoked with a snapshot after every
// change. The returned function unsubscribes.
func (f *Feed) Subscribe(fn func([]Toast)) func() {
	if fn == nil {
		return func() {}
	}

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs = append(f.subs, feedSubscriber{id: id, fn: fn})
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, sub := range f.subs {
			if sub.id == id {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				return
			}
		}
	}
}

func (f *Feed) snapshotLocked() ([]Toast, []feedSubscriber) {
	snapshot := append([]Toast(nil), f.items...)
	subs := append([]feedSubscriber(nil), f.subs...)
	return snapshot, subs
}

func notifyFeedSubscribers(subs []feedSubscriber, snapshot []Toast) {
	for _, sub := range subs {
		sub.fn(snapshot)
	}
}
