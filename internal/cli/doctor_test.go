package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xabinapal/esdsn/internal/probe"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{CheckOK, "OK"},
		{CheckWarning, "WARN"},
		{CheckError, "ERROR"},
		{CheckSkipped, "SKIP"},
		{CheckStatus(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("CheckStatus.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckStatus_Icon(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{CheckOK, "[OK]"},
		{CheckWarning, "[!!]"},
		{CheckError, "[XX]"},
		{CheckSkipped, "[--]"},
		{CheckStatus(99), "[??]"},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.Icon(); got != tt.want {
				t.Errorf("CheckStatus.Icon() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDoctorWithoutDSNs(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("", "doctor")
	if err != nil {
		t.Fatalf("doctor should only warn: %v\n%s", err, out)
	}
	for _, want := range []string{
		"[!!] Configuration file: not found",
		"[OK] Keyring: in-memory",
		"[!!] DSNs: no DSNs configured",
		"All critical checks passed with some warnings.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}
}

func TestDoctorKeyringUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.keyring.SetFailing(true)

	out, err := env.run("", "doctor", "-o", "json")
	if err == nil {
		t.Fatal("doctor should fail without a keyring")
	}

	var result DoctorOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if !result.HasErrors {
		t.Error("HasErrors should be set")
	}
	if result.Checks[1].Name != "Keyring" || result.Checks[1].Status != CheckError {
		t.Errorf("keyring check = %+v", result.Checks[1])
	}
}

func TestDoctorProbesEveryDSN(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "", "dsn", "add", "up", "--host=up.local")
	env.mustRun(t, "", "dsn", "add", "down", "--host=down.local")

	env.client.respond(func(target probe.Target) (*probe.Response, error) {
		if target.Host == "down.local" {
			return &probe.Response{StatusCode: 401}, nil
		}
		return &probe.Response{StatusCode: 200, ClusterName: "c", Version: "8.15.0"}, nil
	})

	out, err := env.run("", "doctor", "--probe", "--verbose")
	if err == nil {
		t.Fatal("doctor should fail when a DSN cannot authenticate")
	}
	if !strings.Contains(out, "[OK] DSN up: connection successful") {
		t.Errorf("missing success line:\n%s", out)
	}
	if !strings.Contains(out, "[XX] DSN down: authentication failed") {
		t.Errorf("missing failure line:\n%s", out)
	}
	if !strings.Contains(out, "-> Run 'esdsn dsn test down --verbose'") {
		t.Errorf("missing suggested fix:\n%s", out)
	}
	if got := env.client.calls(); got != 2 {
		t.Errorf("probed %d DSNs, want 2", got)
	}
}
