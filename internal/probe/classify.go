package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/xabinapal/esdsn/internal/utils"
)

// Classify maps a client result onto the outcome taxonomy. Raw errors never
// escape; their message becomes the Reason.
func Classify(resp *Response, err error) Outcome {
	if err != nil {
		return classifyError(err)
	}
	if resp == nil {
		return Outcome{Kind: UnknownError, Reason: "no response"}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Outcome{Kind: Success, ClusterName: resp.ClusterName, Version: resp.Version}
	case resp.StatusCode == http.StatusUnauthorized:
		return Outcome{Kind: AuthFailed, Reason: "server rejected the credentials (HTTP 401)"}
	case resp.StatusCode == http.StatusForbidden:
		return Outcome{Kind: AuthFailed, Reason: "user is not allowed to access the cluster (HTTP 403)"}
	default:
		return Outcome{Kind: UnknownError, Reason: fmt.Sprintf("unexpected status: %d", resp.StatusCode)}
	}
}

// unreachableErrnos are socket errors that mean the cluster cannot be
// reached, whether they surface while dialing or mid-request.
var unreachableErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
}

func classifyError(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: Timeout, Reason: "no answer before the deadline"}
	}
	if errors.Is(err, context.Canceled) {
		return Outcome{Kind: UnknownError, Reason: "probe cancelled"}
	}

	if reason, ok := tlsReason(err); ok {
		return Outcome{Kind: TLSFailed, Reason: reason}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Outcome{Kind: Timeout, Reason: "no answer before the deadline"}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Outcome{Kind: UnreachableHost, Reason: "cannot resolve host " + dnsErr.Name}
	}

	for _, errno := range unreachableErrnos {
		if errors.Is(err, errno) {
			return Outcome{Kind: UnreachableHost, Reason: errno.Error()}
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return Outcome{Kind: UnreachableHost, Reason: opErr.Err.Error()}
	}

	return Outcome{Kind: UnknownError, Reason: err.Error()}
}

// tlsReason extracts a reason from handshake and verification failures.
func tlsReason(err error) (string, bool) {
	var setupErr *SetupError
	if errors.As(err, &setupErr) {
		return setupErr.Err.Error(), true
	}

	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return "certificate verification failed: " + verifyErr.Err.Error(), true
	}

	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return unknownAuthority.Error(), true
	}

	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return hostnameErr.Error(), true
	}

	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) {
		return invalidErr.Error(), true
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return "server does not speak TLS: " + recordErr.Msg, true
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "server aborted the handshake: " + alertErr.Error(), true
	}

	if utils.ContainsAny(err.Error(), "tls:", "x509:") {
		return err.Error(), true
	}

	return "", false
}
