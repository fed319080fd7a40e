// Package profile defines the DSN connection profile and the pipeline that
// turns a raw, user-entered profile into a resolved one.
package profile

import (
	"fmt"
	"strconv"

	"github.com/xabinapal/esdsn/internal/logging"
	"github.com/xabinapal/esdsn/internal/trust"
	"github.com/xabinapal/esdsn/internal/utils"
)

// DefaultPort is the Elasticsearch HTTP port used for new DSNs.
const DefaultPort = 9200

// Field length limits.
const (
	MaxNameLength        = 256
	MaxDescriptionLength = 256
	MaxValueLength       = 512
)

// Logging holds the driver logging settings of a DSN.
type Logging struct {
	Enabled   bool
	Level     logging.Level
	Directory string
}

// Profile is a DSN as entered by the user. It may be incomplete or invalid.
type Profile struct {
	Name        string
	Description string

	// CloudID, when set, is authoritative for Host and Port.
	CloudID string
	Host    string
	Port    int

	Username string
	Password string

	Trust           trust.Level
	CertificatePath string

	Logging Logging
}

// New returns the draft used when creating a DSN.
func New(name string) Profile {
	return Profile{
		Name:  name,
		Port:  DefaultPort,
		Trust: trust.EnabledHostname,
		Logging: Logging{
			Level: logging.LevelInfo,
		},
	}
}

// Address returns host:port.
func (p Profile) Address() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}

// String describes the profile without its password.
func (p Profile) String() string {
	return fmt.Sprintf("dsn %q (%s, trust=%s, user=%q, password=%s)",
		p.Name, p.Address(), p.Trust, p.Username, utils.Redact(p.Password))
}

// LogFields returns the profile as log data. The password is never included.
func (p Profile) LogFields() map[string]interface{} {
	fields := map[string]interface{}{
		"dsn":   p.Name,
		"host":  p.Host,
		"port":  p.Port,
		"trust": p.Trust.String(),
	}
	if p.CloudID != "" {
		fields["cloud_id"] = true
	}
	if p.Username != "" {
		fields["user"] = p.Username
	}
	return fields
}

// Resolved is a profile that passed validation. Only Validator.Validate creates one.
type Resolved struct {
	p Profile
}

// Profile returns a copy of the resolved profile.
func (r Resolved) Profile() Profile {
	return r.p
}

// Name returns the DSN name.
func (r Resolved) Name() string {
	return r.p.Name
}

// IsZero reports whether r was never produced by Validate.
func (r Resolved) IsZero() bool {
	return r.p.Name == ""
}

// String describes the resolved profile without its password.
func (r Resolved) String() string {
	return r.p.String()
}
