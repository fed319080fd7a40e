package profile

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xabinapal/esdsn/internal/cloudid"
	"github.com/xabinapal/esdsn/internal/trust"
)

// ReservedNameChars may not appear in an ODBC data source name.
const ReservedNameChars = `[]{}(),;?*=!@\`

// cloudTrustFloor is the level a Cloud ID forces a Disabled profile up to.
const cloudTrustFloor = trust.EnabledHostname

// Option configures a Validator.
type Option func(*Validator)

// WithFileSystem replaces the filesystem used for certificate and log directory checks.
func WithFileSystem(fs FileSystem) Option {
	return func(v *Validator) {
		v.fs = fs
	}
}

// Validator normalizes and validates profiles. It holds no mutable state and
// is safe for concurrent use.
type Validator struct {
	fs FileSystem
}

// NewValidator creates a Validator backed by the OS filesystem unless overridden.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{fs: OSFileSystem{}}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate resolves raw into a Resolved profile, or returns every violated
// rule as ValidationErrors. Validating an already resolved profile is a no-op.
func (v *Validator) Validate(raw Profile) (Resolved, error) {
	p := normalize(raw)
	var errs ValidationErrors

	add := func(kind Kind, field, detail string) {
		errs = append(errs, &ValidationError{Kind: kind, Field: field, Detail: detail})
	}

	// Name
	switch n := utf8.RuneCountInString(p.Name); {
	case n == 0:
		add(MissingName, "name", "")
	case n > MaxNameLength:
		add(MissingName, "name", "longer than "+strconv.Itoa(MaxNameLength)+" characters")
	case strings.ContainsAny(p.Name, ReservedNameChars):
		add(InvalidName, "name", "must not contain any of "+ReservedNameChars)
	}

	// Endpoint. A decodable Cloud ID wins over whatever host/port were typed.
	if p.CloudID != "" {
		ep, err := cloudid.Decode(p.CloudID)
		if err != nil {
			add(InvalidClusterIdentifier, "cloud_id", err.Error())
		} else {
			p.Host = ep.Host
			p.Port = ep.Port
			if ep.TLS && p.Trust == trust.Disabled {
				p.Trust = cloudTrustFloor
			}
		}
	}

	if p.Host == "" {
		add(MissingHost, "host", "")
	}
	if p.Port < 0 || p.Port > 65535 {
		add(InvalidPort, "port", strconv.Itoa(p.Port))
	}

	// Trust
	if !p.Trust.Valid() {
		add(InvalidTrust, "trust", p.Trust.String())
	} else if p.Trust.RequiresCertificatePath() && p.CertificatePath == "" {
		add(MissingCertificatePath, "certificate_path", "")
	}
	if p.CertificatePath != "" && !v.fs.IsReadableFile(p.CertificatePath) {
		add(CertificateNotFound, "certificate_path", p.CertificatePath)
	}

	// Logging settings only matter when logging is on.
	if p.Logging.Enabled {
		if !p.Logging.Level.Valid() {
			add(InvalidLogLevel, "log_level", p.Logging.Level.String())
		}
		if p.Logging.Directory == "" {
			add(MissingLogDirectory, "log_directory", "")
		} else if !v.fs.IsWritableDirectory(p.Logging.Directory) {
			add(LogDirectoryInvalid, "log_directory", p.Logging.Directory)
		}
	}

	for _, f := range []struct {
		field string
		value string
		max   int
	}{
		{"description", p.Description, MaxDescriptionLength},
		{"cloud_id", p.CloudID, MaxValueLength},
		{"host", p.Host, MaxValueLength},
		{"username", p.Username, MaxValueLength},
		{"password", p.Password, MaxValueLength},
		{"certificate_path", p.CertificatePath, MaxValueLength},
		{"log_directory", p.Logging.Directory, MaxValueLength},
	} {
		if utf8.RuneCountInString(f.value) > f.max {
			add(FieldTooLong, f.field, "longer than "+strconv.Itoa(f.max)+" characters")
		}
	}

	if len(errs) > 0 {
		return Resolved{}, errs
	}
	return Resolved{p: p}, nil
}

// normalize trims surrounding whitespace from free-text fields.
// Passwords are taken verbatim.
func normalize(p Profile) Profile {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.CloudID = strings.TrimSpace(p.CloudID)
	p.Host = strings.TrimSpace(p.Host)
	p.Username = strings.TrimSpace(p.Username)
	p.CertificatePath = strings.TrimSpace(p.CertificatePath)
	p.Logging.Directory = strings.TrimSpace(p.Logging.Directory)
	return p
}
