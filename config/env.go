package config

import (
	"encoding/json"
	"os"
	"strconv"
)

var envPrefix = "MOTTU"

var toInt = func(s string) (int, error) { return strconv.Atoi(s) }
var toBool = func(s string) (bool, error) { return strconv.ParseBool(s) }
var toFloat = func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
var toStringSlice = func(s string) ([]string, error) {
	var r []string
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return r, nil
}
var toCertConfigSlice = func(s string) ([]CertConfig, error) {
	var r []CertConfig
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return r, nil
}
var toStringMap = func(s string) (map[string]string, error) {
	var r map[string]string
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return r, nil
}
var toIntMap = func(s string) (map[string]int, error) {
	var r map[string]int
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Config) loadEnv() {
	c.Http.loadEnv(envPrefix)
	c.Backend.loadEnv(envPrefix)
	c.Cache.loadEnv(envPrefix)
	c.Patios.loadEnv(envPrefix)
	c.Log.loadEnv(envPrefix)
	c.Tls.loadEnv(envPrefix)
	c.Diag.loadEnv(envPrefix)
}

func (h *HttpConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "HTTP")
	readEnv(prefix, "PORT", &h.Port, toInt)
	readEnv(prefix, "HEADERS", &h.Headers, toStringMap)
	h.Log.loadEnv(prefix)
	h.CORS.loadEnv(prefix)
	h.RateLimit.loadEnv(prefix)
	h.Revalidate.loadEnv(prefix)
}

func (c *CORSConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "CORS")
	readEnv(prefix, "ENABLED", &c.Enabled, toBool)
	readEnv(prefix, "ALLOWED_ORIGINS", &c.AllowedOrigins, toStringSlice)
}

func (r *RateLimitConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "RATE_LIMIT")
	readEnv(prefix, "ENABLED", &r.Enabled, toBool)
	readEnv(prefix, "REQUESTS_PER_SECOND", &r.RequestsPerSecond, toFloat)
	readEnv(prefix, "BURST", &r.Burst, toInt)
	readEnv(prefix, "TRUST_FORWARDED_FOR", &r.TrustForwardedFor, toBool)
	readEnv(prefix, "IDLE_TIMEOUT", &r.IdleTimeout, toInt)
}

func (r *RevalidateConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "REVALIDATE")
	readEnv(prefix, "ENABLED", &r.Enabled, toBool)
	readEnv(prefix, "AUTH_HEADERS", &r.AuthHeaders, toStringMap)
	r.Auth.loadEnv(prefix)
}

func (a *AuthConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "AUTH")
	readEnvString(prefix, "USER", &a.User)
	readEnvString(prefix, "PASSWORD", &a.Password)
}

func (b *BackendConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "BACKEND")
	readEnvString(prefix, "ORIGIN", &b.Origin)
	readEnvString(prefix, "API_PATH", &b.ApiPath)
	readEnv(prefix, "TIMEOUT", &b.Timeout, toInt)
	readEnv(prefix, "HEADERS", &b.Headers, toStringMap)
	b.Log.loadEnv(prefix)
}

func (c *CacheConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "CACHE")
	readEnv(prefix, "ENABLED", &c.Enabled, toBool)
	readEnv(prefix, "REVALIDATE", &c.Revalidate, toIntMap)
	c.Redis.loadEnv(prefix)
	c.MongoDb.loadEnv(prefix)
	c.DynamoDb.loadEnv(prefix)
}

func (r *RedisConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "REDIS")
	readEnvString(prefix, "USER", &r.User)
	readEnvString(prefix, "PASSWORD", &r.Password)
	readEnv(prefix, "DB", &r.DB, toInt)
	readEnv(prefix, "ENABLED", &r.Enabled, toBool)
	readEnv(prefix, "ADDRESSES", &r.Addresses, toStringSlice)
	r.Tls.loadEnv(prefix)
}

func (m *MongoDbConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "MONGODB")
	readEnv(prefix, "ENABLED", &m.Enabled, toBool)
	readEnvString(prefix, "URL", &m.Url)
	readEnvString(prefix, "DATABASE", &m.Database)
	readEnvString(prefix, "COLLECTION", &m.Collection)
	m.Tls.loadEnv(prefix)
}

func (d *DynamoDbConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "DYNAMODB")
	readEnv(prefix, "ENABLED", &d.Enabled, toBool)
	readEnvString(prefix, "URL", &d.Url)
	readEnvString(prefix, "TABLE", &d.Table)
}

func (p *PatiosConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "PATIOS")
	readEnvString(prefix, "FILE_PATH", &p.FilePath)
	readEnv(prefix, "WATCH", &p.Watch, toBool)
	p.Log.loadEnv(prefix)
}

func (d *DiagConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "DIAG")
	readEnv(prefix, "PORT", &d.Port, toInt)
	readEnv(prefix, "ENABLED", &d.Enabled, toBool)
	d.Status.loadEnv(prefix)
	d.Metrics.loadEnv(prefix)
	d.Traces.loadEnv(prefix)
}

func (s *StatusConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "STATUS")
	readEnv(prefix, "ENABLED", &s.Enabled, toBool)
}

func (m *MetricsConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "METRICS")
	readEnv(prefix, "ENABLED", &m.Enabled, toBool)
	readEnv(concatPrefix(prefix, "PROMETHEUS"), "ENABLED", &m.Prometheus.Enabled, toBool)
	m.Otlp.loadEnv(prefix)
}

func (t *TraceConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "TRACES")
	readEnv(prefix, "ENABLED", &t.Enabled, toBool)
	t.Otlp.loadEnv(prefix)
}

func (o *OtlpExporterConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "OTLP")
	readEnv(prefix, "ENABLED", &o.Enabled, toBool)
	readEnvString(prefix, "PROTOCOL", &o.Protocol)
	readEnvString(prefix, "ENDPOINT", &o.Endpoint)
}

func (t *TlsConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "TLS")
	readEnvString(prefix, "SERVER_NAME", &t.ServerName)
	readEnv(prefix, "MIN_VERSION", &t.MinVersion, toFloat)
	readEnv(prefix, "ENABLED", &t.Enabled, toBool)
	readEnv(prefix, "CERTIFICATES", &t.Certificates, toCertConfigSlice)
}

func (l *LogConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "LOG")
	readEnvString(prefix, "LEVEL", &l.Level)
}

func readEnv[T any](prefix string, key string, in *T, conv func(string) (T, error)) {
	if env := os.Getenv(prefix + "_" + key); env != "" {
		if r, err := conv(env); err == nil {
			*in = r
		}
	}
}

func readEnvString(prefix string, key string, in *string) {
	if env := os.Getenv(prefix + "_" + key); env != "" {
		*in = env
	}
}

func concatPrefix(p1 string, p2 string) string {
	return p1 + "_" + p2
}
