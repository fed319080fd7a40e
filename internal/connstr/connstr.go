// Package connstr converts DSN profiles to and from ODBC connection strings
// understood by the Elasticsearch ODBC driver.
package connstr

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xabinapal/esdsn/internal/logging"
	"github.com/xabinapal/esdsn/internal/profile"
	"github.com/xabinapal/esdsn/internal/trust"
)

// DriverName is the name the driver registers with the ODBC driver manager.
const DriverName = "Elasticsearch Driver"

// DefaultHost is what the driver connects to when neither Server nor
// CloudID is given.
const DefaultHost = "localhost"

// Connection string keywords.
const (
	KeyDriver       = "Driver"
	KeyDSN          = "DSN"
	KeyDescription  = "Description"
	KeyCloudID      = "CloudID"
	KeyServer       = "Server"
	KeyPort         = "Port"
	KeyUID          = "UID"
	KeyPWD          = "PWD"
	KeySecure       = "Secure"
	KeyCAPath       = "CAPath"
	KeyTraceEnabled = "TraceEnabled"
	KeyTraceLevel   = "TraceLevel"
	KeyTraceFile    = "TraceFile"
)

var (
	// ErrSyntax is returned for strings that are not keyword=value lists.
	ErrSyntax = errors.New("invalid connection string")
	// ErrValue is returned when a keyword has a value of the wrong type.
	ErrValue = errors.New("invalid connection string value")
)

// Format renders r as a connection string. The password is never included.
func Format(r profile.Resolved) string {
	p := r.Profile()

	var b strings.Builder
	write := func(key, value string) {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(quote(value))
		b.WriteByte(';')
	}

	write(KeyDriver, DriverName)
	write(KeyDSN, p.Name)
	if p.Description != "" {
		write(KeyDescription, p.Description)
	}
	if p.CloudID != "" {
		write(KeyCloudID, p.CloudID)
	} else {
		write(KeyServer, p.Host)
		write(KeyPort, strconv.Itoa(p.Port))
	}
	if p.Username != "" {
		write(KeyUID, p.Username)
	}
	write(KeySecure, strconv.Itoa(int(p.Trust)))
	if p.CertificatePath != "" {
		write(KeyCAPath, p.CertificatePath)
	}
	if p.Logging.Enabled {
		write(KeyTraceEnabled, "1")
		write(KeyTraceLevel, p.Logging.Level.String())
		write(KeyTraceFile, logging.TracePath(p.Logging.Directory, p.Name))
	}

	return b.String()
}

// quote wraps values the driver would otherwise split or trim in braces.
func quote(v string) string {
	if v == "" {
		return v
	}
	if !strings.ContainsAny(v, ";{}") && strings.TrimSpace(v) == v {
		return v
	}
	return "{" + strings.ReplaceAll(v, "}", "}}") + "}"
}

// Parse reads a connection string into a raw profile. Keywords are
// case-insensitive; the first occurrence of a keyword wins and unknown
// keywords are ignored. The result still needs validation.
func Parse(s string) (profile.Profile, error) {
	pairs, err := split(s)
	if err != nil {
		return profile.Profile{}, err
	}

	p := profile.New("")
	hostSet := false

	for _, kv := range pairs {
		key, value := kv[0], kv[1]
		switch {
		case strings.EqualFold(key, KeyDSN):
			p.Name = value
		case strings.EqualFold(key, KeyDescription):
			p.Description = value
		case strings.EqualFold(key, KeyCloudID):
			p.CloudID = value
		case strings.EqualFold(key, KeyServer):
			p.Host = value
			hostSet = true
		case strings.EqualFold(key, KeyPort):
			n, err := strconv.Atoi(value)
			if err != nil {
				return profile.Profile{}, fmt.Errorf("%w: %s=%q", ErrValue, KeyPort, value)
			}
			p.Port = n
		case strings.EqualFold(key, KeyUID):
			p.Username = value
		case strings.EqualFold(key, KeyPWD):
			p.Password = value
		case strings.EqualFold(key, KeySecure):
			level, err := trust.ParseLevel(value)
			if err != nil {
				return profile.Profile{}, fmt.Errorf("%w: %s=%q", ErrValue, KeySecure, value)
			}
			p.Trust = level
		case strings.EqualFold(key, KeyCAPath):
			p.CertificatePath = value
		case strings.EqualFold(key, KeyTraceEnabled):
			enabled, err := parseBool(value)
			if err != nil {
				return profile.Profile{}, fmt.Errorf("%w: %s=%q", ErrValue, KeyTraceEnabled, value)
			}
			p.Logging.Enabled = enabled
		case strings.EqualFold(key, KeyTraceLevel):
			level, err := logging.ParseLevel(value)
			if err != nil {
				return profile.Profile{}, fmt.Errorf("%w: %s=%q", ErrValue, KeyTraceLevel, value)
			}
			p.Logging.Level = level
		case strings.EqualFold(key, KeyTraceFile):
			if value != "" {
				p.Logging.Directory = filepath.Dir(value)
			}
		}
	}

	if !hostSet && p.CloudID == "" {
		p.Host = DefaultHost
	}

	return p, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	}
	return false, ErrValue
}

// split breaks s into keyword/value pairs, dropping repeated keywords.
func split(s string) ([][2]string, error) {
	var pairs [][2]string
	seen := make(map[string]bool)

	for i := 0; i < len(s); {
		// Skip separators and blanks between pairs.
		if s[i] == ';' || s[i] == ' ' || s[i] == '\t' {
			i++
			continue
		}

		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: missing '=' after %q", ErrSyntax, strings.TrimSpace(s[i:]))
		}
		key := strings.TrimSpace(s[i : i+eq])
		if key == "" || strings.ContainsAny(key, ";{}") {
			return nil, fmt.Errorf("%w: bad keyword %q", ErrSyntax, key)
		}
		i += eq + 1

		// Leading blanks before a value are insignificant.
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}

		var value string
		if i < len(s) && s[i] == '{' {
			v, n, err := readBraced(s[i:])
			if err != nil {
				return nil, err
			}
			value = v
			i += n
			for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
				i++
			}
			if i < len(s) && s[i] != ';' {
				return nil, fmt.Errorf("%w: unexpected text after value of %s", ErrSyntax, key)
			}
		} else {
			end := strings.IndexByte(s[i:], ';')
			if end < 0 {
				end = len(s) - i
			}
			value = strings.TrimSpace(s[i : i+end])
			i += end
		}

		lower := strings.ToLower(key)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		pairs = append(pairs, [2]string{key, value})
	}

	return pairs, nil
}

// readBraced reads a {value} starting at s[0] == '{'. "}}" is an escaped brace.
// It returns the value and the number of bytes consumed.
func readBraced(s string) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '}' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '}' {
			b.WriteByte('}')
			i++
			continue
		}
		return b.String(), i + 1, nil
	}
	return "", 0, fmt.Errorf("%w: unterminated '{'", ErrSyntax)
}
