//go:build integration

// Package integration provides integration tests for esdsn against a live
// Elasticsearch node.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// TestEnv represents an Elasticsearch node to test against.
type TestEnv struct {
	Host     string
	Port     string
	Username string
	Password string
}

// ElasticsearchTestEnv returns the test environment from ES_TEST_* variables.
// The node is expected to serve plain HTTP with security enabled.
func ElasticsearchTestEnv() *TestEnv {
	env := &TestEnv{
		Host:     os.Getenv("ES_TEST_HOST"),
		Port:     os.Getenv("ES_TEST_PORT"),
		Username: os.Getenv("ES_TEST_USER"),
		Password: os.Getenv("ES_TEST_PASSWORD"),
	}
	if env.Host == "" {
		env.Host = "127.0.0.1"
	}
	if env.Port == "" {
		env.Port = "9200"
	}
	if env.Username == "" {
		env.Username = "elastic"
	}
	if env.Password == "" {
		env.Password = "changeme"
	}
	return env
}

// URL returns the root endpoint of the node.
func (e *TestEnv) URL() string {
	return "http://" + e.Host + ":" + e.Port + "/"
}

// ConnectString returns a driver connection string for the node.
func (e *TestEnv) ConnectString(user, password string) string {
	return fmt.Sprintf("Driver={Elasticsearch Driver};Server=%s;Port=%s;UID=%s;PWD=%s;Secure=0;",
		e.Host, e.Port, user, password)
}

// IsAvailable checks if the node answers, with or without credentials.
func (e *TestEnv) IsAvailable() bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(e.URL())
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusUnauthorized
}

// WaitForReady waits for the node to answer.
func (e *TestEnv) WaitForReady(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("elasticsearch not ready: %w", ctx.Err())
		case <-ticker.C:
			if e.IsAvailable() {
				return nil
			}
		}
	}
}

// SkipIfNotAvailable skips the test if the node is not reachable.
func (e *TestEnv) SkipIfNotAvailable(t *testing.T) {
	t.Helper()
	if !e.IsAvailable() {
		t.Skipf("elasticsearch test environment not available at %s", e.URL())
	}
}

// BinaryPath returns the path to the esdsn binary.
func BinaryPath(t *testing.T) string {
	t.Helper()

	if path := os.Getenv("ESDSN_BINARY"); path != "" {
		return path
	}

	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to get caller information")
	}

	// Go up from test/integration to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	binaryPath := filepath.Join(projectRoot, "bin", "esdsn")

	if runtime.GOOS == "windows" {
		binaryPath += ".exe"
	}

	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Fatalf("esdsn binary not found at %s - run 'go build -o bin/esdsn ./cmd/esdsn' first", binaryPath)
	}

	return binaryPath
}

// Workspace is an isolated configuration and keyring for one test.
type Workspace struct {
	t      *testing.T
	binary string
	env    []string

	ConfigDir  string
	KeyringDir string
	LogDir     string
}

// NewWorkspace creates an isolated workspace under t.TempDir.
func NewWorkspace(t *testing.T) *Workspace {
	t.Helper()

	tmpDir := t.TempDir()
	w := &Workspace{
		t:          t,
		binary:     BinaryPath(t),
		ConfigDir:  filepath.Join(tmpDir, "config"),
		KeyringDir: filepath.Join(tmpDir, "keyring"),
		LogDir:     filepath.Join(tmpDir, "logs"),
	}
	for _, dir := range []string{w.ConfigDir, w.KeyringDir, w.LogDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	w.env = append(os.Environ(),
		"HOME="+tmpDir,
		"ESDSN_CONFIG_DIR="+w.ConfigDir,
		"ESDSN_TEST_KEYRING_DIR="+w.KeyringDir, // Use directory-based keyring for tests
		"XDG_STATE_HOME="+filepath.Join(tmpDir, "state"),
	)
	return w
}

// Run runs esdsn with the given stdin and arguments.
func (w *Workspace) Run(ctx context.Context, stdin string, args ...string) (string, string, error) {
	w.t.Helper()

	cmd := exec.CommandContext(ctx, w.binary, args...)
	cmd.Env = w.env
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// MustRun runs esdsn and fails the test on a non-zero exit.
func (w *Workspace) MustRun(ctx context.Context, stdin string, args ...string) string {
	w.t.Helper()

	stdout, stderr, err := w.Run(ctx, stdin, args...)
	if err != nil {
		w.t.Fatalf("esdsn %s failed: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, stdout, stderr)
	}
	return stdout
}
