package probe

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind classifies the result of a probe.
type Kind int

const (
	// Success means the server accepted the credentials.
	Success Kind = iota
	// AuthFailed means the server was reached but rejected the credentials.
	AuthFailed
	// UnreachableHost means the host could not be resolved or refused the connection.
	UnreachableHost
	// TLSFailed means the TLS handshake or certificate verification failed.
	TLSFailed
	// Timeout means the probe did not finish within its deadline.
	Timeout
	// UnknownError covers everything else.
	UnknownError
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case AuthFailed:
		return "auth_failed"
	case UnreachableHost:
		return "unreachable_host"
	case TLSFailed:
		return "tls_failed"
	case Timeout:
		return "timeout"
	case UnknownError:
		return "unknown_error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Outcome is the classified result of one probe.
type Outcome struct {
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason,omitempty"`

	// Set on Success when the server reported them.
	ClusterName string `json:"cluster_name,omitempty"`
	Version     string `json:"version,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
}

// OK reports whether the probe succeeded.
func (o Outcome) OK() bool {
	return o.Kind == Success
}

// String returns a one-line summary suitable for users.
func (o Outcome) String() string {
	switch o.Kind {
	case Success:
		if o.ClusterName != "" || o.Version != "" {
			return fmt.Sprintf("connection successful (cluster %q, version %s)", o.ClusterName, o.Version)
		}
		return "connection successful"
	case AuthFailed:
		return "authentication failed: " + o.Reason
	case UnreachableHost:
		return "host unreachable: " + o.Reason
	case TLSFailed:
		return "TLS failure: " + o.Reason
	case Timeout:
		return "timed out: " + o.Reason
	default:
		return "connection failed: " + o.Reason
	}
}
