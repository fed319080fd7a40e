package profile

import (
	"errors"
	"strings"
)

// Kind identifies a validation rule.
type Kind int

const (
	MissingName Kind = iota + 1
	InvalidName
	InvalidClusterIdentifier
	MissingHost
	InvalidPort
	InvalidTrust
	MissingCertificatePath
	CertificateNotFound
	MissingLogDirectory
	LogDirectoryInvalid
	InvalidLogLevel
	FieldTooLong
)

// Sentinel errors, one per Kind, for errors.Is checks.
var (
	ErrMissingName              = errors.New("dsn name is required")
	ErrInvalidName              = errors.New("dsn name contains reserved characters")
	ErrInvalidClusterIdentifier = errors.New("cloud id is malformed")
	ErrMissingHost              = errors.New("host is required")
	ErrInvalidPort              = errors.New("port must be between 0 and 65535")
	ErrInvalidTrust             = errors.New("unknown trust level")
	ErrMissingCertificatePath   = errors.New("certificate path is required by the trust level")
	ErrCertificateNotFound      = errors.New("certificate file is not readable")
	ErrMissingLogDirectory      = errors.New("log directory is required when logging is enabled")
	ErrLogDirectoryInvalid      = errors.New("log directory is not writable")
	ErrInvalidLogLevel          = errors.New("unknown log level")
	ErrFieldTooLong             = errors.New("value is too long")
)

var kindErrors = map[Kind]error{
	MissingName:              ErrMissingName,
	InvalidName:              ErrInvalidName,
	InvalidClusterIdentifier: ErrInvalidClusterIdentifier,
	MissingHost:              ErrMissingHost,
	InvalidPort:              ErrInvalidPort,
	InvalidTrust:             ErrInvalidTrust,
	MissingCertificatePath:   ErrMissingCertificatePath,
	CertificateNotFound:      ErrCertificateNotFound,
	MissingLogDirectory:      ErrMissingLogDirectory,
	LogDirectoryInvalid:      ErrLogDirectoryInvalid,
	InvalidLogLevel:          ErrInvalidLogLevel,
	FieldTooLong:             ErrFieldTooLong,
}

var kindNames = map[Kind]string{
	MissingName:              "MissingName",
	InvalidName:              "InvalidName",
	InvalidClusterIdentifier: "InvalidClusterIdentifier",
	MissingHost:              "MissingHost",
	InvalidPort:              "InvalidPort",
	InvalidTrust:             "InvalidTrust",
	MissingCertificatePath:   "MissingCertificatePath",
	CertificateNotFound:      "CertificateNotFound",
	MissingLogDirectory:      "MissingLogDirectory",
	LogDirectoryInvalid:      "LogDirectoryInvalid",
	InvalidLogLevel:          "InvalidLogLevel",
	FieldTooLong:             "FieldTooLong",
}

// String returns the rule name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ValidationError is a single violated rule.
type ValidationError struct {
	Kind  Kind
	Field string
	// Detail is optional extra context, e.g. the decoder error.
	Detail string
}

// Error implements error.
func (e *ValidationError) Error() string {
	msg := e.Field + ": " + kindErrors[e.Kind].Error()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap returns the sentinel error of the rule.
func (e *ValidationError) Unwrap() error {
	return kindErrors[e.Kind]
}

// ValidationErrors is the complete set of violations of one validation run.
type ValidationErrors []*ValidationError

// Error implements error.
func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return "invalid dsn: " + strings.Join(msgs, "; ")
}

// Unwrap exposes every violation to errors.Is and errors.As.
func (errs ValidationErrors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

// Has reports whether a violation of kind k is present.
func (errs ValidationErrors) Has(k Kind) bool {
	for _, e := range errs {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Kinds returns the violated rules in report order.
func (errs ValidationErrors) Kinds() []Kind {
	kinds := make([]Kind, len(errs))
	for i, e := range errs {
		kinds[i] = e.Kind
	}
	return kinds
}
