package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
)

func (c *Config) Validate() error {
	if err := c.Http.validate(); err != nil {
		return err
	}
	if err := c.Backend.validate(); err != nil {
		return err
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if err := c.Patios.validate(); err != nil {
		return err
	}
	if err := c.Tls.validate(); err != nil {
		return err
	}
	if err := c.Diag.validate(); err != nil {
		return err
	}
	return nil
}

func (h *HttpConfig) validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http: invalid port %d", h.Port)
	}
	if h.RateLimit.Enabled {
		if h.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("http: rate limit requests per second must be greater than 0")
		}
		if h.RateLimit.Burst < 1 {
			return fmt.Errorf("http: rate limit burst must be at least 1")
		}
	}
	if err := h.Revalidate.validate(); err != nil {
		return err
	}
	return nil
}

func (r *RevalidateConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	if (r.Auth.User != "" && r.Auth.Password == "") || (r.Auth.Password != "" && r.Auth.User == "") {
		return fmt.Errorf("revalidate: both basic auth user and password required")
	}
	return nil
}

func (b *BackendConfig) validate() error {
	u, err := url.Parse(b.Origin)
	if err != nil {
		return fmt.Errorf("backend: invalid origin '%s': %s", b.Origin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend: origin must be an absolute http(s) URL, got '%s'", b.Origin)
	}
	if b.Timeout < 1 {
		return fmt.Errorf("backend: timeout must be greater than 1 seconds")
	}
	return nil
}

func (c *CacheConfig) validate() error {
	for category, secs := range c.Revalidate {
		if secs < 0 {
			return fmt.Errorf("cache: revalidate period of '%s' can't be negative", category)
		}
	}
	if c.Redis.Enabled {
		if len(c.Redis.Addresses) == 0 {
			return fmt.Errorf("redis: at least 1 server address required")
		}
		if err := c.Redis.Tls.validate(); err != nil {
			return err
		}
	}
	if c.MongoDb.Enabled {
		if c.MongoDb.Url == "" {
			return fmt.Errorf("mongodb: invalid connection string")
		}
		if c.MongoDb.Database == "" || c.MongoDb.Collection == "" {
			return fmt.Errorf("mongodb: database and collection names are required")
		}
		if err := c.MongoDb.Tls.validate(); err != nil {
			return err
		}
	}
	if c.DynamoDb.Enabled && c.DynamoDb.Table == "" {
		return fmt.Errorf("dynamodb: table name is required")
	}
	return nil
}

func (p *PatiosConfig) validate() error {
	if p.FilePath == "" {
		if p.Watch {
			return fmt.Errorf("patios: watch enabled without a file path")
		}
		return nil
	}
	if _, err := os.Stat(p.FilePath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("patios: couldn't find the pátio file %s", p.FilePath)
	}
	return nil
}

func (t *TlsConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	for _, cert := range t.Certificates {
		if (cert.Cert != "" && cert.Key == "") || (cert.Key != "" && cert.Cert == "") {
			return fmt.Errorf("tls: both TLS cert and key file required")
		}
	}
	return nil
}

func (d *DiagConfig) validate() error {
	if !d.Enabled {
		return nil
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("diag: invalid port %d", d.Port)
	}
	if d.Metrics.Enabled && d.Metrics.Otlp.Enabled {
		if err := d.Metrics.Otlp.validate(); err != nil {
			return err
		}
	}
	if d.Traces.Enabled && d.Traces.Otlp.Enabled {
		if err := d.Traces.Otlp.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (o *OtlpExporterConfig) validate() error {
	if o.Protocol != "grpc" && o.Protocol != "http" && o.Protocol != "https" {
		return fmt.Errorf("diag: invalid otlp protocol '%s', it must be 'grpc', 'http' or 'https'", o.Protocol)
	}
	return nil
}
