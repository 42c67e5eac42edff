package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/transport"
)

// fakeProvider records lifecycle calls without any network
type fakeProvider struct {
	name       string
	connectErr error
	connected  bool
	sent       []string
	mu         sync.Mutex
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeProvider) Instance() (transport.Sender, error) {
	if !f.connected {
		return nil, transport.ErrNotConnected
	}
	return f, nil
}

func (f *fakeProvider) SendMessage(ctx context.Context, recipient string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recipient)
	return nil
}

func (f *fakeProvider) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnsureSessionIdempotent(t *testing.T) {
	var created atomic.Int32
	factory := func(name string) (transport.Provider, error) {
		created.Add(1)
		return &fakeProvider{name: name}, nil
	}

	reg := NewRegistry(testLogger(), factory)

	first, err := reg.EnsureSession(context.Background(), "VENTAS")
	require.NoError(t, err)

	second, err := reg.EnsureSession(context.Background(), "VENTAS")
	require.NoError(t, err)

	assert.Same(t, first, second, "second EnsureSession must return the original session")
	assert.Equal(t, int32(1), created.Load(), "provider factory must run once per name")
	assert.Equal(t, 1, reg.Len())
}

func TestEnsureSessionEmptyName(t *testing.T) {
	reg := NewRegistry(testLogger(), func(name string) (transport.Provider, error) {
		return &fakeProvider{name: name}, nil
	})

	_, err := reg.EnsureSession(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestEnsureSessionConcurrentSameName(t *testing.T) {
	var created atomic.Int32
	factory := func(name string) (transport.Provider, error) {
		created.Add(1)
		return &fakeProvider{name: name}, nil
	}

	reg := NewRegistry(testLogger(), factory)

	const n = 50
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := reg.EnsureSession(context.Background(), "VENTAS")
			if err != nil {
				t.Error(err)
				return
			}
			sessions[i] = sess
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load(), "concurrent bootstrap must create exactly one provider")
	assert.Equal(t, 1, reg.Len())
	for i := 1; i < n; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestEnsureSessionDistinctNames(t *testing.T) {
	factory := func(name string) (transport.Provider, error) {
		return &fakeProvider{name: name}, nil
	}

	reg := NewRegistry(testLogger(), factory)

	names := []string{"VENTAS", "SOPORTE", "COBRANZA"}
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := reg.EnsureSession(context.Background(), name)
			if err != nil {
				t.Error(err)
			}
		}(name)
	}
	wg.Wait()

	assert.Equal(t, len(names), reg.Len())
	assert.ElementsMatch(t, names, reg.Names())
}

func TestEnsureSessionConnectFailureNotPublished(t *testing.T) {
	connectErr := errors.New("bridge unreachable")
	factory := func(name string) (transport.Provider, error) {
		return &fakeProvider{name: name, connectErr: connectErr}, nil
	}

	reg := NewRegistry(testLogger(), factory)

	_, err := reg.EnsureSession(context.Background(), "VENTAS")
	require.ErrorIs(t, err, connectErr)

	_, ok := reg.Get("VENTAS")
	assert.False(t, ok, "failed bootstrap must not publish a session")
	assert.Equal(t, 0, reg.Len())
}

func TestSessionGetInfo(t *testing.T) {
	factory := func(name string) (transport.Provider, error) {
		return &fakeProvider{name: name}, nil
	}

	reg := NewRegistry(testLogger(), factory)
	sess, err := reg.EnsureSession(context.Background(), "VENTAS")
	require.NoError(t, err)

	info := sess.GetInfo()
	assert.Equal(t, "VENTAS", info.Name)
	assert.True(t, info.Connected)
	assert.False(t, info.CreatedAt.IsZero())
}

func TestStore(t *testing.T) {
	store := NewStore()

	_, ok := store.Get("k")
	assert.False(t, ok)

	store.Set("k", "v")
	v, ok := store.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, store.Len())
}

func TestFlowRulesCopy(t *testing.T) {
	flow := NewFlow(Rule{Keyword: "hola", Reply: "buenas"})

	rules := flow.Rules()
	require.Len(t, rules, 1)

	rules[0].Reply = "mutated"
	assert.Equal(t, "buenas", flow.Rules()[0].Reply, "Rules must return a copy")
}
