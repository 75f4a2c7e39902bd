// Package registry holds the process-wide singletons that must survive
// across commands and be constructed exactly once under contention: the
// broker bridge, the auth manager, and the blocking-call worker pool
// (spec.md §4.5 "Singleton registry").
package registry

import (
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/skeptomenos/portfolio-prism-engine/internal/auth"
	"github.com/skeptomenos/portfolio-prism-engine/internal/broker"
	"github.com/skeptomenos/portfolio-prism-engine/internal/secrets"
	"github.com/skeptomenos/portfolio-prism-engine/internal/worker"
)

// Registry lazily constructs and owns the engine's singletons. Every getter
// follows the same double-checked-locking shape: an atomic fast-path read,
// and on miss a lock plus re-check before constructing (spec.md §4.6
// "Singleton creation race").
type Registry struct {
	bridgeOnce sync.Mutex
	bridge     atomic.Pointer[broker.Bridge]
	spawn      broker.Spawner

	authOnce sync.Mutex
	authMgr  atomic.Pointer[auth.Manager]
	store    secrets.Store

	poolOnce  sync.Mutex
	pool      atomic.Pointer[worker.Pool]
	poolSize  int
	poolQueue int

	hookMu      sync.Mutex
	restartHook func()
}

// SetRestartHook registers a callback invoked every time the broker bridge
// is forcibly restarted (desync, timeout, write/read failure). Must be
// called before the bridge's first use to take effect; typically set
// immediately after New during process startup.
func (r *Registry) SetRestartHook(fn func()) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.restartHook = fn
}

// New builds a Registry. spawn constructs the broker child command; it is
// invoked lazily, only once the bridge is first needed. store is the
// credential store the auth manager persists remembered logins to.
// poolSize/poolQueue configure the blocking-call worker pool (spec.md §4.9:
// max 2 workers).
func New(spawn broker.Spawner, store secrets.Store, poolSize, poolQueue int) *Registry {
	return &Registry{spawn: spawn, store: store, poolSize: poolSize, poolQueue: poolQueue}
}

// Bridge returns the process-wide broker bridge, constructing it on first
// call. Exactly one instance is ever created even under concurrent callers.
func (r *Registry) Bridge() *broker.Bridge {
	if b := r.bridge.Load(); b != nil {
		return b
	}
	r.bridgeOnce.Lock()
	defer r.bridgeOnce.Unlock()
	if b := r.bridge.Load(); b != nil {
		return b
	}
	b := broker.New(r.spawn)
	r.hookMu.Lock()
	hook := r.restartHook
	r.hookMu.Unlock()
	if hook != nil {
		b.SetRestartHook(hook)
	}
	r.bridge.Store(b)
	return b
}

// Auth returns the process-wide authentication manager, constructing it
// (and the bridge it fronts) on first call.
func (r *Registry) Auth() *auth.Manager {
	if a := r.authMgr.Load(); a != nil {
		return a
	}
	r.authOnce.Lock()
	defer r.authOnce.Unlock()
	if a := r.authMgr.Load(); a != nil {
		return a
	}
	a := auth.NewManager(r.Bridge(), r.store)
	r.authMgr.Store(a)
	return a
}

// Pool returns the process-wide blocking-call worker pool, constructing it
// on first call.
func (r *Registry) Pool() *worker.Pool {
	if p := r.pool.Load(); p != nil {
		return p
	}
	r.poolOnce.Lock()
	defer r.poolOnce.Unlock()
	if p := r.pool.Load(); p != nil {
		return p
	}
	p := worker.New(r.poolSize, r.poolQueue)
	r.pool.Store(p)
	return p
}

// DefaultSpawner builds the standard broker child command line. Production
// wiring passes this to New; tests substitute their own Spawner.
func DefaultSpawner(binary string, args ...string) broker.Spawner {
	return func() *exec.Cmd {
		return exec.Command(binary, args...)
	}
}
