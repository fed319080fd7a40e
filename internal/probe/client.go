package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/xabinapal/esdsn/internal/profile"
	"github.com/xabinapal/esdsn/internal/trust"
	"github.com/xabinapal/esdsn/internal/version"
)

// maxBodySize caps how much of the root endpoint response is read.
const maxBodySize = 64 << 10

// Target is everything the network client needs to reach a DSN.
type Target struct {
	Host            string
	Port            int
	Trust           trust.Level
	CertificatePath string
	Username        string
	Password        string
}

// TargetFor builds the Target of a resolved profile.
func TargetFor(p profile.Profile) Target {
	return Target{
		Host:            p.Host,
		Port:            p.Port,
		Trust:           p.Trust,
		CertificatePath: p.CertificatePath,
		Username:        p.Username,
		Password:        p.Password,
	}
}

// Response is the low-level result of a successful round trip.
type Response struct {
	StatusCode  int
	ClusterName string
	Version     string
}

// Client performs one authenticated request against a target.
// Implementations must release every connection they open before returning.
type Client interface {
	Do(ctx context.Context, target Target) (*Response, error)
}

// SetupError reports a TLS configuration problem found before dialing.
type SetupError struct {
	Err error
}

// Error implements error.
func (e *SetupError) Error() string {
	return "tls setup: " + e.Err.Error()
}

// Unwrap implements errors unwrapping.
func (e *SetupError) Unwrap() error {
	return e.Err
}

// HTTPClient queries the Elasticsearch root endpoint over HTTP(S).
type HTTPClient struct{}

// NewHTTPClient creates the default network client.
func NewHTTPClient() Client {
	return &HTTPClient{}
}

// rootInfo is the subset of the root endpoint response we report.
type rootInfo struct {
	ClusterName string `json:"cluster_name"`
	Version     struct {
		Number string `json:"number"`
	} `json:"version"`
}

// Do implements Client.
func (c *HTTPClient) Do(ctx context.Context, target Target) (*Response, error) {
	tlsConfig, err := trust.TLSConfig(target.Trust, target.Host, target.CertificatePath)
	if err != nil {
		return nil, &SetupError{Err: err}
	}

	scheme := "http"
	if target.Trust.RequiresTLS() {
		scheme = "https"
	}

	// One connection, never pooled, torn down on every path.
	transport := &http.Transport{
		Proxy:             nil,
		DialContext:       (&net.Dialer{}).DialContext,
		TLSClientConfig:   tlsConfig,
		DisableKeepAlives: true,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	url := scheme + "://" + net.JoinHostPort(target.Host, strconv.Itoa(target.Port)) + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.Get().UserAgent())
	if target.Username != "" || target.Password != "" {
		req.SetBasicAuth(target.Username, target.Password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &Response{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		// The status line already answered the credential question.
		return out, nil
	}

	var info rootInfo
	if json.Unmarshal(body, &info) == nil {
		out.ClusterName = info.ClusterName
		out.Version = info.Version.Number
	}

	return out, nil
}
