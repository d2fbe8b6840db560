// Package config parses and validates walbroadcaster's CLI surface: the
// flags unchanged from the original safekeeper_proxy tool, plus an optional
// YAML overlay and the metrics/health/TUI additions.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// MaxSafekeepers is the upper bound on how many safekeepers a single
// broadcaster may fan out to. It bounds the size of the per-message ack
// slice (internal/broadcast.WalMessage, sized to the configured peer count)
// and keeps the vote round and queue scans O(MaxSafekeepers) at worst.
const MaxSafekeepers = 32

// Config holds every setting walbroadcaster needs to run, whether it came
// from a YAML overlay, command-line flags, or a built-in default. Flags
// always win over the overlay.
type Config struct {
	Safekeepers []string `yaml:"safekeepers" validate:"required,min=1,dive,required"`
	Quorum      int      `yaml:"quorum" validate:"required,min=1"`

	DBName   string `yaml:"dbname" validate:"required"`
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required,min=1,max=65535"`
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"-"`

	PromptPassword bool `yaml:"-"`
	NoPassword     bool `yaml:"-"`
	Verbose        bool `yaml:"verbose"`

	MetricsAddr string `yaml:"metrics_addr"`
	HealthAddr  string `yaml:"health_addr"`
	TUI         bool   `yaml:"tui"`
}

// Default returns a Config with the same baseline defaults the original
// safekeeper_proxy used (port 5432, database "postgres", username matching
// $USER at flag-parse time — filled in by ParseFlags, not here). Quorum is
// left at zero: it depends on how many safekeepers end up configured, so
// ParseFlags fills it in with DefaultQuorum once the safekeeper list is
// final.
func Default() Config {
	return Config{
		Port:   5432,
		DBName: "postgres",
		Host:   "localhost",
	}
}

// DefaultQuorum computes the majority quorum for n safekeepers: floor(n/2)+1,
// the smallest quorum that guarantees any two quorums overlap.
func DefaultQuorum(n int) int {
	return n/2 + 1
}

// LoadYAMLOverlay reads path and merges its fields into cfg. Zero-value
// overlay fields never overwrite an already-set field, so callers apply it
// before parsing flags.
func LoadYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read overlay: %w", err)
	}
	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parse overlay: %w", err)
	}
	mergeOverlay(cfg, &overlay)
	return nil
}

func mergeOverlay(dst, overlay *Config) {
	if len(overlay.Safekeepers) > 0 {
		dst.Safekeepers = overlay.Safekeepers
	}
	if overlay.Quorum > 0 {
		dst.Quorum = overlay.Quorum
	}
	if overlay.DBName != "" {
		dst.DBName = overlay.DBName
	}
	if overlay.Host != "" {
		dst.Host = overlay.Host
	}
	if overlay.Port > 0 {
		dst.Port = overlay.Port
	}
	if overlay.Username != "" {
		dst.Username = overlay.Username
	}
	if overlay.Verbose {
		dst.Verbose = true
	}
	if overlay.MetricsAddr != "" {
		dst.MetricsAddr = overlay.MetricsAddr
	}
	if overlay.HealthAddr != "" {
		dst.HealthAddr = overlay.HealthAddr
	}
	if overlay.TUI {
		dst.TUI = true
	}
}

// Validate checks struct-tag constraints via go-playground/validator and
// then the cross-field business rules a struct tag can't express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return translateValidationError(err)
	}

	if len(c.Safekeepers) > MaxSafekeepers {
		return fmt.Errorf("%w: %d safekeepers exceeds the maximum of %d", ErrInvalidSafekeeper, len(c.Safekeepers), MaxSafekeepers)
	}
	for _, addr := range c.Safekeepers {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidSafekeeper, addr)
		}
	}
	if c.Quorum > len(c.Safekeepers) {
		return fmt.Errorf("%w: quorum %d exceeds %d safekeepers", ErrInvalidQuorum, c.Quorum, len(c.Safekeepers))
	}
	if min := DefaultQuorum(len(c.Safekeepers)); c.Quorum < min {
		return fmt.Errorf("%w: quorum %d is below the majority floor %d for %d safekeepers", ErrInvalidQuorum, c.Quorum, min, len(c.Safekeepers))
	}
	if c.PromptPassword && c.NoPassword {
		return ErrConflictingAuth
	}
	return nil
}

// translateValidationError maps the first validator.FieldError into one of
// our sentinels, matching pkg/validation/validator.go's friendly-message
// convention without needing a message per struct tag.
func translateValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Safekeepers":
		return ErrNoSafekeepers
	case "Quorum":
		return fmt.Errorf("%w: got %v", ErrInvalidQuorum, fe.Value())
	case "DBName":
		return ErrMissingDBName
	case "Host":
		return ErrMissingHost
	case "Port":
		return fmt.Errorf("%w: got %v", ErrInvalidPort, fe.Value())
	case "Username":
		return ErrMissingUsername
	default:
		return err
	}
}

// ParsePort converts a port given as a string, treating an empty string as
// "use fallback". The -p/--port flags are parsed as plain integers and do
// not go through this helper.
func ParsePort(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}
