package authflow

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"
)

var ErrInvalidCertificatePEM = errors.New("invalid certificate PEM")

// NewHTTPClient creates the client used to talk to the provider. When caPEMFile
// is set its certificates replace the system roots.
func NewHTTPClient(caPEMFile string) (*http.Client, error) {
	tr := cleanhttp.DefaultPooledTransport()

	if caPEMFile != "" {
		caPEM, err := os.ReadFile(caPEMFile)
		if err != nil {
			return nil, fmt.Errorf("[authflow NewHTTPClient] failed to read %s: %w", caPEMFile, err)
		}
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM(caPEM); !ok {
			return nil, ErrInvalidCertificatePEM
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: tr,
	}, nil
}

// Discover fetches the provider's endpoints from its discovery document.
func Discover(ctx context.Context, issuer string, client *http.Client) (oauth2.Endpoint, string, error) {
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), issuer)
	if err != nil {
		return oauth2.Endpoint{}, "", fmt.Errorf("[authflow Discover] failed to create OIDC provider: %w", err)
	}

	var metadata struct {
		JWKSURL string `json:"jwks_uri"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return oauth2.Endpoint{}, "", fmt.Errorf("[authflow Discover] failed to read provider metadata: %w", err)
	}
	return provider.Endpoint(), metadata.JWKSURL, nil
}
