package httpapi

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the endpoints of the two lookup services.
type Config struct {
	PhoneURL        string        `yaml:"phone_url"`
	PhoneParam      string        `yaml:"phone_param"`
	NationalIDURL   string        `yaml:"national_id_url"`
	NationalIDParam string        `yaml:"national_id_param"`
	NationalIDKey   string        `yaml:"national_id_key"`
	KeyParam        string        `yaml:"key_param"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.PhoneURL == "" {
		c.PhoneURL = "https://numapi.anshapi.workers.dev/"
	}
	if c.PhoneParam == "" {
		c.PhoneParam = "num"
	}
	if c.NationalIDURL == "" {
		c.NationalIDURL = "https://addartofamily.vercel.app/fetch"
	}
	if c.NationalIDParam == "" {
		c.NationalIDParam = "aadhaar"
	}
	if c.KeyParam == "" {
		c.KeyParam = "key"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
}

func (c *Config) validate() error {
	var errs []error
	for name, raw := range map[string]string{"phone_url": c.PhoneURL, "national_id_url": c.NationalIDURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("lookup.http: invalid %s %q", name, raw))
		}
	}
	return errors.Join(errs...)
}
