package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// WarmupFunc loads one slice of dashboard data ahead of time.
type WarmupFunc func(ctx context.Context) error

// PrefetchOption customizes Prefetcher construction.
type PrefetchOption func(*Prefetcher)

// WithPrefetchLogger overrides the logger used by the prefetcher.
func WithPrefetchLogger(logger Logger) PrefetchOption {
	return func(p *Prefetcher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPrefetchTimeout bounds a single warmup run.
func WithPrefetchTimeout(d time.Duration) PrefetchOption {
	return func(p *Prefetcher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithPrefetchRunner overrides how warmup runs are scheduled. The default
// runs them on their own goroutine; tests inject a synchronous runner.
func WithPrefetchRunner(run func(func())) PrefetchOption {
	return func(p *Prefetcher) {
		if run != nil {
			p.run = run
		}
	}
}

// Prefetcher warms role-specific dashboard data once a session reaches
// full authentication. It is purely an optimization: warmup failures are
// swallowed, and nothing runs while a session is only partially
// authenticated, so no role-specific fetch ever leaks for an unverified
// principal.
type Prefetcher struct {
	source  StateSource
	logger  Logger
	timeout time.Duration
	run     func(func())

	mu          sync.Mutex
	warmers     map[UserRole][]WarmupFunc
	wasAuthed   bool
	unsubscribe func()
}

// NewPrefetcher creates a coordinator observing the given session source.
// Register warmups before calling Start.
func NewPrefetcher(source StateSource, opts ...PrefetchOption) *Prefetcher {
	p := &Prefetcher{
		source:  source,
		logger:  defLogger{},
		timeout: 15 * time.Second,
		run:     func(fn func()) { go fn() },
		warmers: map[UserRole][]WarmupFunc{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// RegisterWarmup adds a warmup for the given role. Multiple warmups per
// role run concurrently.
func (p *Prefetcher) RegisterWarmup(role UserRole, fn WarmupFunc) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warmers[role] = append(p.warmers[role], fn)
}

// Start begins observing session state. The current state counts: a
// session restored before Start still triggers a warmup.
func (p *Prefetcher) Start() {
	p.mu.Lock()
	if p.unsubscribe != nil {
		p.mu.Unlock()
		return
	}
	p.unsubscribe = p.source.Subscribe(p.observe)
	p.mu.Unlock()

	p.observe(p.source.State())
}

// Stop unsubscribes from the session source.
func (p *Prefetcher) Stop() {
	p.mu.Lock()
	unsub := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// observe fires a warmup only on the transition into Authenticated.
// AwaitingOTP and AwaitingEmailVerification are strict no-ops.
func (p *Prefetcher) observe(st State) {
	authed := st.IsAuthenticated()

	p.mu.Lock()
	fire := authed && !p.wasAuthed && st.User != nil
	p.wasAuthed = authed
	var fns []WarmupFunc
	var role UserRole
	if fire {
		role = st.User.Role
		fns = append(fns, p.warmers[role]...)
	}
	p.mu.Unlock()

	if !fire || len(fns) == 0 {
		return
	}

	p.run(func() {
		p.warm(role, fns)
	})
}

func (p *Prefetcher) warm(role UserRole, fns []WarmupFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			return fn(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		p.logger.Debug("dashboard warmup error", "role", role, "error", err)
	}
}
