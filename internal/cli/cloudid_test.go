package cli

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xabinapal/esdsn/internal/cloudid"
)

func TestCloudIDEncodeDecode(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "", "cloudid", "encode", "staging", "es.staging.example.com",
		"--port=9243", "--kibana-host=kb.staging.example.com")
	id := strings.TrimSpace(out)
	if !strings.HasPrefix(id, "staging:") {
		t.Fatalf("unexpected Cloud ID %q", id)
	}

	out = env.mustRun(t, "", "cloudid", "decode", id, "-o", "json")
	var decoded CloudIDOutput
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	want := CloudIDOutput{Host: "es.staging.example.com", Port: 9243, KibanaHost: "kb.staging.example.com", KibanaPort: 443}
	if decoded != want {
		t.Errorf("decoded = %+v, want %+v", decoded, want)
	}

	out = env.mustRun(t, "", "cloudid", "decode", id)
	if !strings.Contains(out, "Elasticsearch: https://es.staging.example.com:9243") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestCloudIDDecodeMalformed(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("", "cloudid", "decode", "no-separator")
	if !errors.Is(err, cloudid.ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestCloudIDEncodeRejectsBadPort(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run("", "cloudid", "encode", "x", "es.local", "--port=70000"); err == nil {
		t.Error("expected an error for an out-of-range port")
	}
}

func TestVersionCmd(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "", "version")
	if !strings.HasPrefix(out, "esdsn ") {
		t.Errorf("unexpected version output: %s", out)
	}

	out = env.mustRun(t, "", "version", "-o", "json")
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if info["version"] == "" {
		t.Errorf("version missing from %v", info)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run("", "dsn", "list", "-o", "xml"); err == nil {
		t.Error("expected an error for an unknown output format")
	}
}

func TestCompletionCmd(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "", "completion", "bash")
	if !strings.Contains(out, "esdsn") {
		t.Error("bash completion should mention the program name")
	}
}
