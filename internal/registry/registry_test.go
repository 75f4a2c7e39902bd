package registry

import (
	"context"
	"os/exec"
	"sync"
	"testing"

	"github.com/skeptomenos/portfolio-prism-engine/internal/broker"
	"github.com/skeptomenos/portfolio-prism-engine/internal/secrets"
	"github.com/skeptomenos/portfolio-prism-engine/internal/worker"
)

// memStore is a minimal in-memory secrets.Store double; registry tests
// never need real OS-keychain persistence.
type memStore struct{}

func (memStore) Save(context.Context, secrets.Credential) error { return nil }
func (memStore) Load(context.Context) (secrets.Credential, error) {
	return secrets.Credential{}, secrets.ErrNoCredentials
}
func (memStore) Clear(context.Context) error { return nil }

func TestRegistry_Bridge_ConstructsExactlyOnceUnderContention(t *testing.T) {
	spawn := func() *exec.Cmd { return exec.Command("true") }
	r := New(spawn, memStore{}, 2, 8)

	const workers = 32
	var wg sync.WaitGroup
	results := make([]*broker.Bridge, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = r.Bridge()
		}(i)
	}
	wg.Wait()

	first := results[0]
	for _, b := range results {
		if b != first {
			t.Fatal("expected every caller to observe the same bridge instance")
		}
	}
}

func TestRegistry_Pool_ConstructsExactlyOnceUnderContention(t *testing.T) {
	spawn := func() *exec.Cmd { return exec.Command("true") }
	r := New(spawn, memStore{}, 2, 8)

	const workers = 32
	var wg sync.WaitGroup
	results := make([]*worker.Pool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = r.Pool()
		}(i)
	}
	wg.Wait()

	first := results[0]
	for _, p := range results {
		if p != first {
			t.Fatal("expected every caller to observe the same pool instance")
		}
	}
}

func TestRegistry_Auth_ConstructsExactlyOnceAndSharesBridge(t *testing.T) {
	spawn := func() *exec.Cmd { return exec.Command("true") }
	r := New(spawn, memStore{}, 2, 8)

	a1 := r.Auth()
	a2 := r.Auth()
	if a1 != a2 {
		t.Fatal("expected Auth to return the same manager instance")
	}
}
