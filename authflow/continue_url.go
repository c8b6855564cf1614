package authflow

import (
	"fmt"
	"net/url"
	"strings"

	shherrors "github.com/jrsteele09/go-shh/internal/errors"
)

// ContinueURLValidator accepts post-login redirect targets that stay on this
// service.
type ContinueURLValidator struct {
	service     *url.URL
	servicePath string
}

// NewContinueURLValidator creates a validator for the given service address,
// e.g. https://secrets.example.com/shh.
func NewContinueURLValidator(serviceAddress string) (*ContinueURLValidator, error) {
	service, err := url.Parse(serviceAddress)
	if err != nil || service.Scheme == "" || service.Host == "" {
		return nil, fmt.Errorf("[authflow NewContinueURLValidator] invalid service address %q", serviceAddress)
	}
	return &ContinueURLValidator{
		service:     service,
		servicePath: strings.TrimSuffix(service.Path, "/"),
	}, nil
}

// Default is used when no continue URL was supplied.
func (v *ContinueURLValidator) Default() string {
	return v.servicePath + "/"
}

// Validate returns the continue URL to redirect to, substituting Default for an
// empty value. Relative URLs must be host relative paths; absolute URLs must
// match the service's scheme and host and sit under its path.
func (v *ContinueURLValidator) Validate(continueURL string) (string, error) {
	if continueURL == "" {
		return v.Default(), nil
	}
	if strings.ContainsAny(continueURL, "\\\r\n") {
		return "", fmt.Errorf("%w: %q", shherrors.ErrInvalidContinueURL, continueURL)
	}

	parsed, err := url.Parse(continueURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q", shherrors.ErrInvalidContinueURL, continueURL)
	}

	if parsed.Scheme == "" && parsed.Host == "" {
		if !strings.HasPrefix(continueURL, "/") || strings.HasPrefix(continueURL, "//") {
			return "", fmt.Errorf("%w: %q is not a host relative path", shherrors.ErrInvalidContinueURL, continueURL)
		}
		return continueURL, nil
	}

	if !strings.EqualFold(parsed.Scheme, v.service.Scheme) || !strings.EqualFold(parsed.Host, v.service.Host) || parsed.User != nil {
		return "", fmt.Errorf("%w: %q is for another service", shherrors.ErrInvalidContinueURL, continueURL)
	}
	if v.servicePath != "" && parsed.Path != v.servicePath && !strings.HasPrefix(parsed.Path, v.servicePath+"/") {
		return "", fmt.Errorf("%w: %q is outside %s", shherrors.ErrInvalidContinueURL, continueURL, v.servicePath)
	}
	return continueURL, nil
}
