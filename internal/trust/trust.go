// Package trust models the TLS trust policy of a DSN.
//
// The five levels are ordered by strictness; every level performs the checks
// of the levels below it. The numeric value of a level is the value of the
// driver's "Secure" connection keyword.
package trust

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidLevel indicates a trust level outside the defined range.
var ErrInvalidLevel = errors.New("invalid trust level")

// Level is a TLS trust tier.
type Level int

const (
	// Disabled sends all traffic unencrypted.
	Disabled Level = iota
	// EnabledNoValidation negotiates TLS and accepts any server certificate.
	EnabledNoValidation
	// EnabledNoHostname validates the certificate chain but skips hostname matching.
	EnabledNoHostname
	// EnabledHostname validates the chain and the hostname.
	EnabledHostname
	// EnabledFull validates against a caller-supplied certificate plus the hostname.
	EnabledFull
)

var levelNames = map[Level]string{
	Disabled:            "disabled",
	EnabledNoValidation: "no-validation",
	EnabledNoHostname:   "no-hostname",
	EnabledHostname:     "hostname",
	EnabledFull:         "full",
}

// Levels returns all levels in increasing strictness.
func Levels() []Level {
	return []Level{Disabled, EnabledNoValidation, EnabledNoHostname, EnabledHostname, EnabledFull}
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= Disabled && l <= EnabledFull
}

// String returns the canonical name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(l)) + ")"
}

// RequiresTLS is false only for Disabled.
func (l Level) RequiresTLS() bool {
	return l != Disabled
}

// RequiresCertificatePath is true only for EnabledFull.
func (l Level) RequiresCertificatePath() bool {
	return l == EnabledFull
}

// VerifiesChain reports whether the server certificate chain is validated.
func (l Level) VerifiesChain() bool {
	return l >= EnabledNoHostname
}

// VerifiesHostname reports whether the server hostname must match the certificate.
func (l Level) VerifiesHostname() bool {
	return l >= EnabledHostname
}

// AtLeast returns the stricter of l and min.
func (l Level) AtLeast(min Level) Level {
	if l < min {
		return min
	}
	return l
}

// ParseLevel parses a level name or its numeric "Secure" value.
func ParseLevel(s string) (Level, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if v == name {
			return l, nil
		}
	}
	if n, err := strconv.Atoi(v); err == nil {
		if l := Level(n); l.Valid() {
			return l, nil
		}
	}
	return Disabled, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// MarshalYAML implements yaml.Marshaler.
func (l Level) MarshalYAML() (interface{}, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, int(l))
	}
	return l.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *Level) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
