package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mottu/patio-proxy/log"
	"gopkg.in/yaml.v3"
)

const defaultBackendOrigin = "http://localhost:8080"

var allowedTlsVersions = map[float64]uint16{
	1.0: tls.VersionTLS10,
	1.1: tls.VersionTLS11,
	1.2: tls.VersionTLS12,
	1.3: tls.VersionTLS13,
}

type Config struct {
	Log     LogConfig
	Http    HttpConfig
	Backend BackendConfig
	Cache   CacheConfig
	Patios  PatiosConfig
	Tls     TlsConfig
	Diag    DiagConfig
}

type HttpConfig struct {
	Port       int               `yaml:"port"`
	Headers    map[string]string `yaml:"headers"`
	Log        LogConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	Revalidate RevalidateConfig
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// TrustForwardedFor keys clients by the first X-Forwarded-For address.
	// Enable only behind a proxy that overwrites the header.
	TrustForwardedFor bool `yaml:"trust_forwarded_for"`
	// seconds after which an idle client's limiter is dropped
	IdleTimeout int `yaml:"idle_timeout"`
}

type RevalidateConfig struct {
	Enabled     bool              `yaml:"enabled"`
	AuthHeaders map[string]string `yaml:"auth_headers"`
	Auth        AuthConfig
}

type AuthConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type BackendConfig struct {
	Origin  string            `yaml:"origin"`
	ApiPath string            `yaml:"api_path"`
	Timeout int               `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
	Log     LogConfig
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// per category revalidate period override in seconds
	Revalidate map[string]int `yaml:"revalidate"`
	Redis      RedisConfig
	MongoDb    MongoDbConfig  `yaml:"mongodb"`
	DynamoDb   DynamoDbConfig `yaml:"dynamodb"`
}

type RedisConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
	DB        int      `yaml:"db"`
	User      string   `yaml:"user"`
	Password  string   `yaml:"password"`
	Tls       TlsConfig
}

type MongoDbConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Url        string `yaml:"url"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	Tls        TlsConfig
}

type DynamoDbConfig struct {
	Enabled bool   `yaml:"enabled"`
	Url     string `yaml:"url"`
	Table   string `yaml:"table"`
}

type PatiosConfig struct {
	FilePath string `yaml:"file_path"`
	Watch    bool   `yaml:"watch"`
	Log      LogConfig
}

type DiagConfig struct {
	Port    int  `yaml:"port"`
	Enabled bool `yaml:"enabled"`
	Status  StatusConfig
	Metrics MetricsConfig
	Traces  TraceConfig
}

type StatusConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MetricsConfig struct {
	Enabled    bool `yaml:"enabled"`
	Prometheus PrometheusExporterConfig
	Otlp       OtlpExporterConfig
}

type TraceConfig struct {
	Enabled bool `yaml:"enabled"`
	Otlp    OtlpExporterConfig
}

type PrometheusExporterConfig struct {
	Enabled bool `yaml:"enabled"`
}

type OtlpExporterConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Protocol string `yaml:"protocol"`
	Endpoint string `yaml:"endpoint"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type CertConfig struct {
	Key  string `yaml:"key"`
	Cert string `yaml:"cert"`
}

type TlsConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MinVersion   float64 `yaml:"min_version"`
	ServerName   string  `yaml:"server_name"`
	Certificates []CertConfig
}

func LoadConfigFromFileAndEnvironment(filePath string) (Config, error) {
	var config Config
	config.setDefaults()

	if filePath != "" {
		_, err := os.Stat(filePath)
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %s does not exist: %s", filePath, err)
		}
		realPath, err := filepath.EvalSymlinks(filePath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to eval symlink for %s: %s", filePath, err)
		}
		data, err := os.ReadFile(realPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %s", realPath, err)
		}

		err = yaml.Unmarshal(data, &config)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML from config file %s: %s", realPath, err)
		}
	}

	config.loadEnv()
	config.Backend.resolveOrigin()
	if config.Log.GetLevel() == log.None {
		config.Log.Level = "warn"
	}
	config.fixupLogLevels(config.Log.Level)
	return config, nil
}

func (l *LogConfig) GetLevel() log.Level {
	return log.ParseLevel(l.Level)
}

func (t *TlsConfig) GetVersion() uint16 {
	if ver, ok := allowedTlsVersions[t.MinVersion]; ok {
		return ver
	}
	return tls.VersionTLS12
}

func (t *TlsConfig) LoadTlsOptions() (*tls.Config, error) {
	conf := &tls.Config{
		MinVersion: t.GetVersion(),
		ServerName: t.ServerName,
	}
	for _, c := range t.Certificates {
		cert, err := tls.LoadX509KeyPair(c.Cert, c.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate and key files: %s", err)
		}
		conf.Certificates = append(conf.Certificates, cert)
	}
	return conf, nil
}

// BaseUrl returns the origin joined with the API path, e.g. http://localhost:8080/api.
func (b *BackendConfig) BaseUrl() string {
	return strings.TrimSuffix(b.Origin, "/") + b.normalizedApiPath()
}

func (b *BackendConfig) normalizedApiPath() string {
	p := strings.TrimSuffix(strings.TrimSpace(b.ApiPath), "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// resolveOrigin applies the front-end era variables when no origin was configured.
func (b *BackendConfig) resolveOrigin() {
	if b.Origin != "" {
		b.Origin = strings.TrimSuffix(b.Origin, "/")
		return
	}
	if origin := os.Getenv("NEXT_PUBLIC_BACKEND_ORIGIN"); origin != "" {
		b.Origin = strings.TrimSuffix(origin, "/")
		return
	}
	if apiUrl := os.Getenv("NEXT_PUBLIC_API_URL"); apiUrl != "" {
		apiUrl = strings.TrimSuffix(apiUrl, "/")
		b.Origin = strings.TrimSuffix(apiUrl, "/api")
		return
	}
	b.Origin = defaultBackendOrigin
}

func (d *DiagConfig) IsMetricsEnabled() bool {
	return d.Enabled && d.Metrics.Enabled
}

func (d *DiagConfig) IsPrometheusExporterEnabled() bool {
	return d.Metrics.Prometheus.Enabled
}

func (d *DiagConfig) IsTracesEnabled() bool {
	return d.Enabled && d.Traces.Enabled
}

func (d *DiagConfig) IsStatusEnabled() bool {
	return d.Enabled && d.Status.Enabled
}

func (c *Config) setDefaults() {
	c.Http.Port = 8050
	c.Http.CORS.Enabled = true
	c.Http.Revalidate.Enabled = true

	c.Http.RateLimit.RequestsPerSecond = 20
	c.Http.RateLimit.Burst = 40
	c.Http.RateLimit.IdleTimeout = 180

	c.Backend.ApiPath = "/api"
	c.Backend.Timeout = 30

	c.Cache.Enabled = true
	c.Cache.Redis.DB = 0
	c.Cache.Redis.Addresses = []string{"localhost:6379"}
	c.Cache.Redis.Tls.MinVersion = 1.2
	c.Cache.MongoDb.Database = "patio_proxy"
	c.Cache.MongoDb.Collection = "cache"
	c.Cache.MongoDb.Tls.MinVersion = 1.2
	c.Cache.DynamoDb.Table = "patio_proxy_cache"

	c.Tls.MinVersion = 1.2

	c.Diag.Port = 8051
	c.Diag.Enabled = true
	c.Diag.Status.Enabled = true
	c.Diag.Metrics.Enabled = true
	c.Diag.Metrics.Prometheus.Enabled = true
	c.Diag.Metrics.Otlp.Protocol = "http"
	c.Diag.Traces.Otlp.Protocol = "http"
}

func (c *Config) fixupLogLevels(defLevel string) {
	if c.Http.Log.GetLevel() == log.None {
		c.Http.Log.Level = defLevel
	}
	if c.Backend.Log.GetLevel() == log.None {
		c.Backend.Log.Level = defLevel
	}
	if c.Patios.Log.GetLevel() == log.None {
		c.Patios.Log.Level = defLevel
	}
}
