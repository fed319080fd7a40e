// Package cloudid decodes Elastic Cloud IDs into endpoint coordinates.
//
// A Cloud ID has the form "<label>:<payload>", where payload is the base64
// encoding of "esHost$esPort" optionally followed by "$kibanaHost$kibanaPort".
package cloudid

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmpty is returned when decoding an empty Cloud ID.
	ErrEmpty = errors.New("cloud id is empty")
	// ErrMalformed is returned for any Cloud ID that cannot be decoded.
	ErrMalformed = errors.New("malformed cloud id")
)

const (
	// separator splits the label from the encoded payload.
	separator = ":"
	// segmentSeparator splits the decoded payload into host and port segments.
	segmentSeparator = "$"
)

// Endpoint holds the coordinates carried by a Cloud ID.
type Endpoint struct {
	Host string
	Port int
	// TLS is always true for a decoded Cloud ID; cloud endpoints are TLS-fronted.
	TLS bool

	// KibanaHost and KibanaPort are only set when the payload carries them.
	KibanaHost string
	KibanaPort int
}

// Decode resolves a Cloud ID into its Elasticsearch endpoint.
// On failure the returned Endpoint is always the zero value.
func Decode(id string) (Endpoint, error) {
	if id == "" {
		return Endpoint{}, ErrEmpty
	}

	if strings.Count(id, separator) != 1 {
		return Endpoint{}, fmt.Errorf("%w: expected exactly one %q separator", ErrMalformed, separator)
	}
	label, payload, _ := strings.Cut(id, separator)
	if label == "" {
		return Endpoint{}, fmt.Errorf("%w: missing label", ErrMalformed)
	}
	if payload == "" {
		return Endpoint{}, fmt.Errorf("%w: missing payload", ErrMalformed)
	}

	decoded, err := decodePayload(payload)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: payload is not base64", ErrMalformed)
	}

	segments := strings.Split(decoded, segmentSeparator)
	// Only the two known layouts are accepted; anything else fails closed.
	if len(segments) != 2 && len(segments) != 4 {
		return Endpoint{}, fmt.Errorf("%w: unexpected segment count %d", ErrMalformed, len(segments))
	}

	host, port, err := parseHostPort(segments[0], segments[1])
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: elasticsearch %v", ErrMalformed, err)
	}

	ep := Endpoint{Host: host, Port: port, TLS: true}

	if len(segments) == 4 {
		kHost, kPort, err := parseHostPort(segments[2], segments[3])
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: kibana %v", ErrMalformed, err)
		}
		ep.KibanaHost = kHost
		ep.KibanaPort = kPort
	}

	return ep, nil
}

// Encode builds a Cloud ID for the endpoint under the given label.
// The Kibana segment is included only when KibanaHost is set.
func Encode(label string, ep Endpoint) string {
	payload := ep.Host + segmentSeparator + strconv.Itoa(ep.Port)
	if ep.KibanaHost != "" {
		payload += segmentSeparator + ep.KibanaHost + segmentSeparator + strconv.Itoa(ep.KibanaPort)
	}
	return label + separator + base64.StdEncoding.EncodeToString([]byte(payload))
}

// decodePayload accepts standard and URL-safe base64, padded or not.
func decodePayload(payload string) (string, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}

	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(payload)
		if err == nil {
			return string(b), nil
		}
		lastErr = err
	}
	return "", lastErr
}

func parseHostPort(host, port string) (string, int, error) {
	if host == "" {
		return "", 0, errors.New("host segment is empty")
	}
	if strings.ContainsAny(host, " \t\r\n") {
		return "", 0, fmt.Errorf("host segment %q contains whitespace", host)
	}
	if port == "" {
		return "", 0, errors.New("port segment is empty")
	}
	for _, c := range port {
		if c < '0' || c > '9' {
			return "", 0, fmt.Errorf("port segment %q is not numeric", port)
		}
	}
	n, err := strconv.Atoi(port)
	if err != nil || n > 65535 {
		return "", 0, fmt.Errorf("port segment %q is out of range", port)
	}
	return host, n, nil
}
