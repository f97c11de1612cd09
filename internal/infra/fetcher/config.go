package fetcher

import (
	"errors"
	"fmt"
	"time"

	pkgconfig "readnext/internal/pkg/config"
)

// Body size and redirect bounds accepted by Validate.
const (
	minBodySize  = 1 << 10
	maxBodySize  = 100 << 20
	maxRedirects = 10
)

// InspectConfig controls how screenshot-path sources get their page title.
type InspectConfig struct {
	// Enabled turns title lookup on. When off, Inspect returns an empty PageInfo.
	Enabled bool

	Timeout time.Duration

	// MaxBodySize is the largest page, in bytes, that will be parsed.
	MaxBodySize int64

	MaxRedirects int

	// DenyPrivateIPs rejects hosts that resolve to private, loopback or
	// link-local addresses. Sources come from the operator's own list, so
	// it is off unless asked for.
	DenyPrivateIPs bool
}

// DefaultConfig returns title lookup on, 15s timeout, 10MB pages, 5 redirects.
func DefaultConfig() InspectConfig {
	return InspectConfig{
		Enabled:      true,
		Timeout:      15 * time.Second,
		MaxBodySize:  10 << 20,
		MaxRedirects: 5,
	}
}

// Validate reports every out-of-range field at once.
func (c InspectConfig) Validate() error {
	var errs []error
	if err := pkgconfig.ValidatePositiveDuration(c.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("timeout: %w", err))
	}
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		errs = append(errs, fmt.Errorf("max body size: must be between %d and %d bytes, got %d",
			minBodySize, maxBodySize, c.MaxBodySize))
	}
	if err := pkgconfig.ValidateIntRange(c.MaxRedirects, 0, maxRedirects); err != nil {
		errs = append(errs, fmt.Errorf("max redirects: %w", err))
	}
	return errors.Join(errs...)
}
