package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xabinapal/esdsn/internal/cloudid"
	"github.com/xabinapal/esdsn/internal/editor"
	"github.com/xabinapal/esdsn/internal/keyring"
	"github.com/xabinapal/esdsn/internal/probe"
	"github.com/xabinapal/esdsn/internal/store"
	"github.com/xabinapal/esdsn/internal/trust"
)

func listNames(t *testing.T, env *testEnv) []string {
	t.Helper()
	out := env.mustRun(t, "", "dsn", "list", "-o", "json")
	var list DSNListOutput
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("invalid JSON from dsn list: %v\n%s", err, out)
	}
	names := make([]string, len(list.DSNs))
	for i, d := range list.DSNs {
		names[i] = d.Name
	}
	return names
}

func TestDSNAddAndList(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "s3cret\n", "dsn", "add", "dev",
		"--host=es.local", "--user=reader", "--password-stdin", "--description=dev cluster")
	if !strings.Contains(out, `Saved DSN "dev"`) {
		t.Errorf("unexpected add output: %s", out)
	}

	secret, err := env.keyring.Get("dev")
	if err != nil || secret != "s3cret" {
		t.Errorf("keyring holds %q, %v; want the password", secret, err)
	}

	data, err := os.ReadFile(filepath.Join(env.configDir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "s3cret") {
		t.Error("password leaked into the configuration file")
	}

	out = env.mustRun(t, "", "dsn", "list")
	for _, want := range []string{"NAME", "dev", "es.local:9200", "hostname", "reader"} {
		if !strings.Contains(out, want) {
			t.Errorf("dsn list missing %q:\n%s", want, out)
		}
	}
}

func TestDSNListEmpty(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "", "dsn", "list")
	if !strings.Contains(out, "No DSNs configured.") {
		t.Errorf("unexpected output: %s", out)
	}
	if names := listNames(t, env); len(names) != 0 {
		t.Errorf("names = %v, want none", names)
	}
}

func TestDSNAddReportsEveryViolation(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("", "dsn", "add", "bad;name", "--host=", "--port=70000", "--trust=full", "-o", "json")
	if err == nil {
		t.Fatal("expected an error for an invalid DSN")
	}

	var result ValidationOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	kinds := make(map[string]bool)
	for _, v := range result.Violations {
		kinds[v.Kind] = true
	}
	for _, want := range []string{"InvalidName", "MissingHost", "InvalidPort", "MissingCertificatePath"} {
		if !kinds[want] {
			t.Errorf("missing violation %s in %+v", want, result.Violations)
		}
	}

	if names := listNames(t, env); len(names) != 0 {
		t.Errorf("invalid DSN was saved: %v", names)
	}
}

func TestDSNAddRejectsBadFlagValues(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run("", "dsn", "add", "x", "--host=h", "--trust=paranoid"); err == nil {
		t.Error("expected an error for an unknown trust level")
	}
	if _, err := env.run("", "dsn", "add", "x", "--host=h", "--log-level=chatty"); err == nil {
		t.Error("expected an error for an unknown log level")
	}
	if _, err := env.run("", "dsn", "add", "x", "--from-connstr=Port=abc"); err == nil {
		t.Error("expected an error for a malformed connection string")
	}
}

func TestDSNAddSuggestsName(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "", "dsn", "add", "--host=prod.example.com")
	env.mustRun(t, "", "dsn", "add", "--host=prod.example.com")

	names := listNames(t, env)
	if len(names) != 2 || names[0] != "prod" || names[1] != "prod-2" {
		t.Errorf("names = %v, want [prod prod-2]", names)
	}
}

func TestDSNAddCloudID(t *testing.T) {
	env := newTestEnv(t)

	id := cloudid.Encode("deployment", cloudid.Endpoint{Host: "abc.es.example.io", Port: 9243})
	env.mustRun(t, "", "dsn", "add", "cloud", "--cloud-id="+id, "--trust=disabled")

	out := env.mustRun(t, "", "dsn", "show", "cloud", "-o", "json")
	var shown DSNOutput
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if shown.Host != "abc.es.example.io" || shown.Port != 9243 {
		t.Errorf("endpoint = %s:%d, want the Cloud ID endpoint", shown.Host, shown.Port)
	}
	if shown.Trust != trust.EnabledHostname.String() {
		t.Errorf("trust = %s, want a Cloud ID to enforce TLS", shown.Trust)
	}
}

func TestDSNAddFromConnStr(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "", "dsn", "add", "imported",
		"--from-connstr=Driver={Elasticsearch Driver};DSN=ignored;Server=es.local;Port=9201;UID=elastic;PWD=changeme;Secure=0;",
		"--description=from odbc.ini")

	out := env.mustRun(t, "", "dsn", "show", "imported", "-o", "json")
	var shown DSNOutput
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if shown.Name != "imported" || shown.Host != "es.local" || shown.Port != 9201 ||
		shown.Username != "elastic" || !shown.PasswordSet || shown.Trust != "disabled" ||
		shown.Description != "from odbc.ini" {
		t.Errorf("imported DSN = %+v", shown)
	}
}

func TestDSNShowRedactsPassword(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hunter2\n", "dsn", "add", "prod", "--host=es.local", "--user=u", "--password-stdin")

	out := env.mustRun(t, "", "dsn", "show", "prod")
	if strings.Contains(out, "hunter2") {
		t.Error("dsn show leaked the password")
	}
	if !strings.Contains(out, "********") {
		t.Errorf("expected a redacted password:\n%s", out)
	}
	if !strings.Contains(out, "Secure=3") {
		t.Errorf("expected the trust level with its driver value:\n%s", out)
	}
}

func TestDSNEdit(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "pw\n", "dsn", "add", "prod", "--host=es.local", "--user=u", "--password-stdin")

	env.mustRun(t, "", "dsn", "edit", "prod", "--port=9243", "--trust=no-validation")

	out := env.mustRun(t, "", "dsn", "show", "prod", "-o", "json")
	var shown DSNOutput
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if shown.Port != 9243 || shown.Trust != "no-validation" {
		t.Errorf("edited DSN = %+v", shown)
	}
	if shown.Host != "es.local" || shown.Username != "u" || !shown.PasswordSet {
		t.Errorf("unchanged settings were lost: %+v", shown)
	}
}

func TestDSNEditClearsPassword(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "pw\n", "dsn", "add", "prod", "--host=es.local", "--password-stdin")

	env.mustRun(t, "\n", "dsn", "edit", "prod", "--password-stdin")

	if _, err := env.keyring.Get("prod"); !errors.Is(err, keyring.ErrSecretNotFound) {
		t.Errorf("password should be removed from the keyring, got %v", err)
	}
}

func TestDSNEditRename(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "pw\n", "dsn", "add", "prod", "--host=es.local", "--password-stdin")

	out := env.mustRun(t, "", "dsn", "edit", "prod", "--name=prod-eu")
	if !strings.Contains(out, `Renamed DSN "prod" to "prod-eu"`) {
		t.Errorf("unexpected output: %s", out)
	}

	names := listNames(t, env)
	if len(names) != 1 || names[0] != "prod-eu" {
		t.Errorf("names = %v, want [prod-eu]", names)
	}
	if secret, err := env.keyring.Get("prod-eu"); err != nil || secret != "pw" {
		t.Errorf("password did not follow the rename: %q, %v", secret, err)
	}
	if _, err := env.keyring.Get("prod"); !errors.Is(err, keyring.ErrSecretNotFound) {
		t.Errorf("old keyring entry should be gone, got %v", err)
	}
}

func TestDSNEditRenameOntoExisting(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "", "dsn", "add", "a", "--host=a.local")
	env.mustRun(t, "", "dsn", "add", "b", "--host=b.local")

	_, err := env.run("", "dsn", "edit", "a", "--name=b")
	if !errors.Is(err, editor.ErrNameTaken) {
		t.Fatalf("err = %v, want ErrNameTaken", err)
	}

	out := env.mustRun(t, "", "dsn", "show", "b", "-o", "json")
	if !strings.Contains(out, "b.local") {
		t.Errorf("b was overwritten: %s", out)
	}
}

func TestDSNEditMissing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("", "dsn", "edit", "ghost", "--port=1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDSNRemove(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "pw\n", "dsn", "add", "prod", "--host=es.local", "--password-stdin")

	out := env.mustRun(t, "", "dsn", "remove", "prod")
	if !strings.Contains(out, `Removed DSN "prod"`) {
		t.Errorf("unexpected output: %s", out)
	}
	if env.keyring.Count() != 0 {
		t.Error("password was left in the keyring")
	}
	if _, err := env.run("", "dsn", "remove", "prod"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second remove err = %v, want ErrNotFound", err)
	}
}

func TestDSNValidate(t *testing.T) {
	env := newTestEnv(t)

	cert := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(cert, []byte("pem"), 0600); err != nil {
		t.Fatal(err)
	}
	env.mustRun(t, "", "dsn", "add", "pinned", "--host=es.local", "--trust=full", "--ca-cert="+cert)

	out := env.mustRun(t, "", "dsn", "validate", "pinned")
	if !strings.Contains(out, `DSN "pinned" is valid`) {
		t.Errorf("unexpected output: %s", out)
	}

	if err := os.Remove(cert); err != nil {
		t.Fatal(err)
	}
	out, err := env.run("", "dsn", "validate", "pinned")
	if err == nil {
		t.Fatal("expected an error once the certificate is gone")
	}
	if !strings.Contains(out, "certificate file is not readable") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestDSNTest(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "pw\n", "dsn", "add", "prod", "--host=es.local", "--user=u", "--password-stdin", "--trust=disabled")

	env.client.respond(func(probe.Target) (*probe.Response, error) {
		return &probe.Response{StatusCode: 200, ClusterName: "logs", Version: "8.15.0"}, nil
	})

	out := env.mustRun(t, "", "dsn", "test", "prod")
	if !strings.Contains(out, `connection successful (cluster "logs", version 8.15.0)`) {
		t.Errorf("unexpected output: %s", out)
	}

	target := env.client.last()
	want := probe.Target{Host: "es.local", Port: 9200, Trust: trust.Disabled, Username: "u", Password: "pw"}
	if target != want {
		t.Errorf("target = %+v, want %+v", target, want)
	}
}

func TestDSNTestAuthFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "", "dsn", "add", "prod", "--host=es.local")

	env.client.respond(func(probe.Target) (*probe.Response, error) {
		return &probe.Response{StatusCode: 401}, nil
	})

	out, err := env.run("", "dsn", "test", "prod", "-o", "json")
	if !errors.Is(err, errConnectionFailed) {
		t.Fatalf("err = %v, want errConnectionFailed", err)
	}

	var result struct {
		DSN     string `json:"dsn"`
		Outcome struct {
			Kind string `json:"kind"`
		} `json:"outcome"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if result.DSN != "prod" || result.Outcome.Kind != "auth_failed" {
		t.Errorf("result = %+v", result)
	}
}

func TestDSNTestNotifiesFailures(t *testing.T) {
	env := newTestEnv(t)
	cfg := "notifications:\n  enabled: true\n"
	if err := os.WriteFile(filepath.Join(env.configDir, "config.yaml"), []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}
	env.mustRun(t, "", "dsn", "add", "prod", "--host=es.local")

	env.client.respond(func(probe.Target) (*probe.Response, error) {
		return &probe.Response{StatusCode: 403}, nil
	})
	if _, err := env.run("", "dsn", "test", "prod"); err == nil {
		t.Fatal("expected the test to fail")
	}

	env.backend.mu.Lock()
	defer env.backend.mu.Unlock()
	if len(env.backend.alerts) != 1 || !strings.Contains(env.backend.alerts[0], "DSN 'prod'") {
		t.Errorf("alerts = %v", env.backend.alerts)
	}
	if len(env.backend.notes) != 0 {
		t.Errorf("unexpected success notifications: %v", env.backend.notes)
	}
}

func TestDSNTestOverridesAreNotSaved(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "", "dsn", "add", "prod", "--host=es.local")

	env.mustRun(t, "", "dsn", "test", "prod", "--port=9243")
	if got := env.client.last().Port; got != 9243 {
		t.Errorf("probed port %d, want the override", got)
	}

	out := env.mustRun(t, "", "dsn", "show", "prod", "-o", "json")
	if !strings.Contains(out, `"port": 9200`) {
		t.Errorf("override was saved: %s", out)
	}
}

func TestDSNTestInvalidNeverContactsServer(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "", "dsn", "add", "prod", "--host=es.local")

	out, err := env.run("", "dsn", "test", "prod", "--port=70000")
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if !strings.Contains(out, "port must be between 0 and 65535") {
		t.Errorf("unexpected output: %s", out)
	}
	if env.client.calls() != 0 {
		t.Error("an invalid DSN reached the network client")
	}
}

func TestDSNTestFromConnStr(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "", "dsn", "test", "--from-connstr=Server=es.local;Port=9201;UID=elastic;PWD=changeme;Secure=0")

	target := env.client.last()
	want := probe.Target{Host: "es.local", Port: 9201, Trust: trust.Disabled, Username: "elastic", Password: "changeme"}
	if target != want {
		t.Errorf("target = %+v, want %+v", target, want)
	}
	if names := listNames(t, env); len(names) != 0 {
		t.Errorf("testing a connection string saved %v", names)
	}
}

func TestDSNTestRequiresNameOrConnStr(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run("", "dsn", "test"); err == nil {
		t.Error("expected an error without a DSN")
	}
}

func TestDSNAddWithTestFlag(t *testing.T) {
	env := newTestEnv(t)

	env.client.respond(func(probe.Target) (*probe.Response, error) {
		return nil, errors.New("boom")
	})
	out, err := env.run("", "dsn", "add", "prod", "--host=es.local", "--test")
	if !errors.Is(err, errConnectionFailed) {
		t.Fatalf("err = %v, want errConnectionFailed", err)
	}
	if !strings.Contains(out, "connection failed: boom") {
		t.Errorf("unexpected output: %s", out)
	}
	if names := listNames(t, env); len(names) != 0 {
		t.Errorf("DSN saved despite a failed test: %v", names)
	}

	env.client.respond(nil)
	out = env.mustRun(t, "", "dsn", "add", "prod", "--host=es.local", "--test")
	if !strings.Contains(out, "Connection test passed.") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestDSNConnStr(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "pw\n", "dsn", "add", "prod", "--host=es.local", "--user=u", "--password-stdin")

	out := env.mustRun(t, "", "dsn", "connstr", "prod")
	want := "Driver=Elasticsearch Driver;DSN=prod;Server=es.local;Port=9200;UID=u;Secure=3;\n"
	if out != want {
		t.Errorf("connstr = %q, want %q", out, want)
	}
}
