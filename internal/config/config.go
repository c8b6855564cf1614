package config

import (
	"fmt"
	"strings"
	"time"
)

type Config interface {
	EnvConfig
	ServiceConfig
	OidcConfig
	DatabaseConfig
	SecurityConfig
	ShutdownConfig
	WorkerConfig
	LogConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetPort() string
	GetMetricsEnabled() bool
	GetMetricsPort() string
}

// ServiceConfig describes the public address the service is reached on,
// which may differ from the listen address when behind a proxy.
type ServiceConfig interface {
	GetServiceAddress() string
	GetServicePath() string
	GetOidcRedirectURI() string
}

type OidcConfig interface {
	GetOidcName() string
	GetOidcIssuer() string
	GetOidcAboutURL() string
	GetOidcAuthEndpoint() string
	GetOidcTokenEndpoint() string
	GetOidcPublicKeyFile() string
	GetOidcJWKSURL() string
	GetOidcClientID() string
	GetOidcClientSecret() string
	GetOidcDiscover() bool
	GetOidcCAPEMFile() string
	GetOidcExchangeTimeout() time.Duration
}

type DatabaseConfig interface {
	GetDatabaseDriver() string
	GetDatabaseDSN() string
	GetDatabaseMaxOpenConns() int
	GetDatabaseMaxIdleConns() int
	GetDatabaseConnMaxLifetime() time.Duration
}

type SecurityConfig interface {
	GetTestingMode() bool
	GetFlowCookieMaxAge() time.Duration
	GetSessionCookieMaxAge() time.Duration
}

type ShutdownConfig interface {
	GetShutdownSleep() time.Duration
	GetShutdownWait() time.Duration
}

type WorkerConfig interface {
	GetSweepInterval() time.Duration
}

type LogConfig interface {
	GetLogJSON() bool
	GetLogVerbose() bool
}

// Settings is the koanf-decoded configuration tree.
type Settings struct {
	AppName     string   `koanf:"app_name"`
	Env         string   `koanf:"env"`
	TestingMode bool     `koanf:"testing_mode"`
	Service     Service  `koanf:"service"`
	Server      Server   `koanf:"server"`
	Oidc        Oidc     `koanf:"oidc"`
	Database    Database `koanf:"database"`
	Shutdown    Shutdown `koanf:"shutdown"`
	Sweeper     Sweeper  `koanf:"sweeper"`
	Metrics     Metrics  `koanf:"metrics"`
	Log         Log      `koanf:"log"`
}

type Service struct {
	Protocol string `koanf:"protocol"`
	Hostname string `koanf:"hostname"`
	Port     string `koanf:"port"`
	Path     string `koanf:"path"`
}

type Server struct {
	Port int `koanf:"port"`
}

type Oidc struct {
	Name            string        `koanf:"name"`
	Issuer          string        `koanf:"issuer"`
	AboutURL        string        `koanf:"about_url"`
	AuthEndpoint    string        `koanf:"auth_endpoint"`
	TokenEndpoint   string        `koanf:"token_endpoint"`
	PublicKeyFile   string        `koanf:"public_key_file"`
	JWKSURL         string        `koanf:"jwks_url"`
	ClientID        string        `koanf:"client_id"`
	ClientSecret    string        `koanf:"client_secret"`
	Discover        bool          `koanf:"discover"`
	CAPEMFile       string        `koanf:"ca_pem_file"`
	ExchangeTimeout time.Duration `koanf:"exchange_timeout"`
}

type Database struct {
	Driver          string        `koanf:"driver"` // "sqlite3" or "pgx"
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type Shutdown struct {
	Sleep time.Duration `koanf:"sleep"`
	Wait  time.Duration `koanf:"wait"`
}

type Sweeper struct {
	Interval time.Duration `koanf:"interval"`
}

// Metrics are off by default. With a port they are served on their own
// listener instead of the public one.
type Metrics struct {
	Enabled bool `koanf:"enabled"`
	Port    int  `koanf:"port"`
}

type Log struct {
	JSON    bool `koanf:"json"`
	Verbose bool `koanf:"verbose"`
}

var _ Config = (*Settings)(nil)

// New returns the default configuration.
func New() *Settings {
	return &Settings{
		AppName: "shh",
		Env:     "DEV",
		Service: Service{
			Protocol: "https",
			Hostname: "localhost",
		},
		Server: Server{Port: 8080},
		Oidc: Oidc{
			Name:            "Alias",
			PublicKeyFile:   "id_rsa.pub",
			ExchangeTimeout: 10 * time.Second,
		},
		Database: Database{
			Driver:          "sqlite3",
			DSN:             "./data/shh.db",
			MaxOpenConns:    50,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Shutdown: Shutdown{
			Sleep: 10 * time.Second,
			Wait:  10 * time.Second,
		},
		Sweeper: Sweeper{Interval: 60 * time.Second},
		Metrics: Metrics{Enabled: false},
	}
}

func (s *Settings) GetAppName() string { return s.AppName }

func (s *Settings) GetEnv() string {
	if s.Env == "" {
		return "DEV"
	}
	return s.Env
}

// GetPort returns the listen address in ":port" form.
func (s *Settings) GetPort() string {
	return fmt.Sprintf(":%d", s.Server.Port)
}

func (s *Settings) GetMetricsEnabled() bool { return s.Metrics.Enabled }

// GetMetricsPort returns the dedicated metrics listen address in ":port" form,
// or "" when metrics share the public listener.
func (s *Settings) GetMetricsPort() string {
	if s.Metrics.Port == 0 {
		return ""
	}
	return fmt.Sprintf(":%d", s.Metrics.Port)
}

// GetServiceAddress builds protocol://hostname[:port][path].
func (s *Settings) GetServiceAddress() string {
	address := fmt.Sprintf("%s://%s", s.Service.Protocol, s.Service.Hostname)
	if s.Service.Port != "" {
		address += ":" + s.Service.Port
	}
	return address + s.GetServicePath()
}

func (s *Settings) GetServicePath() string {
	return strings.TrimSuffix(s.Service.Path, "/")
}

func (s *Settings) GetOidcRedirectURI() string {
	return s.GetServiceAddress() + "/oidc/callback"
}

func (s *Settings) GetOidcName() string          { return s.Oidc.Name }
func (s *Settings) GetOidcIssuer() string        { return s.Oidc.Issuer }
func (s *Settings) GetOidcAboutURL() string      { return s.Oidc.AboutURL }
func (s *Settings) GetOidcAuthEndpoint() string  { return s.Oidc.AuthEndpoint }
func (s *Settings) GetOidcTokenEndpoint() string { return s.Oidc.TokenEndpoint }
func (s *Settings) GetOidcPublicKeyFile() string { return s.Oidc.PublicKeyFile }
func (s *Settings) GetOidcJWKSURL() string       { return s.Oidc.JWKSURL }
func (s *Settings) GetOidcClientID() string      { return s.Oidc.ClientID }
func (s *Settings) GetOidcClientSecret() string  { return s.Oidc.ClientSecret }
func (s *Settings) GetOidcDiscover() bool        { return s.Oidc.Discover }
func (s *Settings) GetOidcCAPEMFile() string     { return s.Oidc.CAPEMFile }

func (s *Settings) GetOidcExchangeTimeout() time.Duration {
	if s.Oidc.ExchangeTimeout <= 0 {
		return 10 * time.Second
	}
	return s.Oidc.ExchangeTimeout
}

func (s *Settings) GetDatabaseDriver() string                 { return s.Database.Driver }
func (s *Settings) GetDatabaseDSN() string                    { return s.Database.DSN }
func (s *Settings) GetDatabaseMaxOpenConns() int              { return s.Database.MaxOpenConns }
func (s *Settings) GetDatabaseMaxIdleConns() int              { return s.Database.MaxIdleConns }
func (s *Settings) GetDatabaseConnMaxLifetime() time.Duration { return s.Database.ConnMaxLifetime }

func (s *Settings) GetTestingMode() bool { return s.TestingMode }

func (Settings) GetFlowCookieMaxAge() time.Duration {
	return 10 * time.Minute
}

func (Settings) GetSessionCookieMaxAge() time.Duration {
	return 24 * time.Hour
}

func (s *Settings) GetShutdownSleep() time.Duration { return s.Shutdown.Sleep }
func (s *Settings) GetShutdownWait() time.Duration  { return s.Shutdown.Wait }

func (s *Settings) GetSweepInterval() time.Duration {
	if s.Sweeper.Interval <= 0 {
		return 60 * time.Second
	}
	return s.Sweeper.Interval
}

func (s *Settings) GetLogJSON() bool    { return s.Log.JSON }
func (s *Settings) GetLogVerbose() bool { return s.Log.Verbose }
