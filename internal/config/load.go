package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "SHH_"

// sections are the top-level keys whose env vars map SHH_<SECTION>_<KEY>
// onto "<section>.<key>"; anything else maps onto a top-level key.
var sections = map[string]struct{}{
	"service":  {},
	"server":   {},
	"oidc":     {},
	"database": {},
	"shutdown": {},
	"sweeper":  {},
	"metrics":  {},
	"log":      {},
}

// Load layers the defaults, an optional TOML file, SHH_ environment variables
// and finally explicit overrides (usually command line flags).
func Load(configPath string, overrides map[string]any) (*Settings, error) {
	cfg := New()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("[config Load] failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("[config Load] failed to load environment variables: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("[config Load] failed to load overrides: %w", err)
		}
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("[config Load] failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, found := strings.Cut(s, "_")
	if !found {
		return s
	}
	if _, ok := sections[section]; ok {
		return section + "." + rest
	}
	return s
}

// Validate checks the settings every command needs.
func (s *Settings) Validate() error {
	var errs []error
	switch s.Database.Driver {
	case "sqlite3", "pgx":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", s.Database.Driver))
	}
	if s.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	return errors.Join(errs...)
}

// ValidateServer checks the settings needed to serve HTTP traffic.
func (s *Settings) ValidateServer() error {
	errs := []error{s.Validate()}

	switch s.Service.Protocol {
	case "http", "https":
	default:
		errs = append(errs, fmt.Errorf("service.protocol must be http or https, got %q", s.Service.Protocol))
	}
	if _, err := url.Parse(s.GetServiceAddress()); err != nil {
		errs = append(errs, fmt.Errorf("invalid service address: %w", err))
	}
	if s.Service.Path != "" && !strings.HasPrefix(s.Service.Path, "/") {
		errs = append(errs, errors.New("service.path must start with /"))
	}

	required := map[string]string{
		"oidc.issuer":        s.Oidc.Issuer,
		"oidc.client_id":     s.Oidc.ClientID,
		"oidc.client_secret": s.Oidc.ClientSecret,
	}
	if !s.Oidc.Discover {
		required["oidc.auth_endpoint"] = s.Oidc.AuthEndpoint
		required["oidc.token_endpoint"] = s.Oidc.TokenEndpoint
	}
	for key, value := range required {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	if s.Oidc.PublicKeyFile == "" && s.Oidc.JWKSURL == "" {
		errs = append(errs, errors.New("one of oidc.public_key_file or oidc.jwks_url is required"))
	}

	return errors.Join(errs...)
}
