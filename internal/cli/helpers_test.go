package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/xabinapal/esdsn/internal/config"
	"github.com/xabinapal/esdsn/internal/keyring"
	"github.com/xabinapal/esdsn/internal/probe"
)

// stubClient answers connection tests without touching the network.
type stubClient struct {
	mu      sync.Mutex
	answer  func(probe.Target) (*probe.Response, error)
	targets []probe.Target
}

func (c *stubClient) Do(ctx context.Context, target probe.Target) (*probe.Response, error) {
	c.mu.Lock()
	c.targets = append(c.targets, target)
	answer := c.answer
	c.mu.Unlock()

	if answer == nil {
		return &probe.Response{StatusCode: 200}, nil
	}
	return answer(target)
}

func (c *stubClient) respond(fn func(probe.Target) (*probe.Response, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answer = fn
}

func (c *stubClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.targets)
}

func (c *stubClient) last() probe.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.targets) == 0 {
		return probe.Target{}
	}
	return c.targets[len(c.targets)-1]
}

// stubBackend records desktop notifications.
type stubBackend struct {
	mu     sync.Mutex
	alerts []string
	notes  []string
}

func (b *stubBackend) Notify(title, message, iconPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes = append(b.notes, title+": "+message)
	return nil
}

func (b *stubBackend) Alert(title, message, iconPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = append(b.alerts, title+": "+message)
	return nil
}

// testEnv is an isolated configuration directory and keyring shared by
// successive CLI invocations.
type testEnv struct {
	configDir string
	stateDir  string
	keyring   *keyring.MockStore
	client    *stubClient
	backend   *stubBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		configDir: t.TempDir(),
		stateDir:  t.TempDir(),
		keyring:   keyring.NewMockStore(),
		client:    &stubClient{},
		backend:   &stubBackend{},
	}
	t.Setenv(config.ConfigDirEnvVar, env.configDir)
	t.Setenv("XDG_STATE_HOME", env.stateDir)
	return env
}

// run executes one CLI invocation and returns its stdout.
func (e *testEnv) run(stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	c := New(
		WithIO(strings.NewReader(stdin), &out),
		WithKeyring(e.keyring),
		WithProbeClient(e.client),
		WithNotifyBackend(e.backend),
	)
	c.rootCmd.SetArgs(args)
	err := c.Execute(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := e.run(stdin, args...)
	if err != nil {
		t.Fatalf("esdsn %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}
