package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// Profile is the subset of an identity provider's userinfo response the
// gateway cares about when provisioning or updating a User on SSO login.
type Profile struct {
	Email         string
	EmailVerified bool
	FullName      string
}

// IdentityProvider abstracts an external SSO provider's authorization-code
// flow (spec §4.7). Concrete implementations wrap golang.org/x/oauth2,
// mirroring how the teacher's deleted OAuth integration wrapped a
// provider-specific client behind a small interface.
type IdentityProvider interface {
	// Name identifies the provider for logging and the "provider" query
	// parameter on the login redirect (e.g. "google", "oidc").
	Name() string

	// AuthorizeURL builds the redirect URL that starts the authorization
	// code flow, encoding state for CSRF protection.
	AuthorizeURL(state string) string

	// ExchangeCode trades an authorization code for a validated user
	// profile.
	ExchangeCode(ctx context.Context, code string) (Profile, error)
}

// OAuth2Config holds the parameters common to every golang.org/x/oauth2
// based provider.
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	UserInfoURL  string
}

// genericOAuth2Provider implements IdentityProvider against any OAuth2
// authorization server that exposes a JSON userinfo endpoint (covers
// Google, Dex/OIDC, Okta, and similar providers with the same shape).
type genericOAuth2Provider struct {
	name        string
	conf        *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	parseProfile func(raw map[string]any) Profile
}

// NewGoogleProvider builds an IdentityProvider for Google's OAuth2/OIDC
// endpoints.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) IdentityProvider {
	return &genericOAuth2Provider{
		name: "google",
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
		userInfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
		httpClient:  http.DefaultClient,
		parseProfile: func(raw map[string]any) Profile {
			return Profile{
				Email:         stringField(raw, "email"),
				EmailVerified: boolField(raw, "email_verified"),
				FullName:      stringField(raw, "name"),
			}
		},
	}
}

// NewOIDCProvider builds an IdentityProvider for a generic OpenID Connect
// issuer (e.g. Dex, Keycloak, Okta) given its discovered authorize/token/
// userinfo endpoints.
func NewOIDCProvider(name string, cfg OAuth2Config) IdentityProvider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	return &genericOAuth2Provider{
		name: name,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  http.DefaultClient,
		parseProfile: func(raw map[string]any) Profile {
			return Profile{
				Email:         stringField(raw, "email"),
				EmailVerified: boolField(raw, "email_verified"),
				FullName:      firstNonEmpty(stringField(raw, "name"), stringField(raw, "preferred_username")),
			}
		},
	}
}

func (p *genericOAuth2Provider) Name() string { return p.name }

func (p *genericOAuth2Provider) AuthorizeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *genericOAuth2Provider) ExchangeCode(ctx context.Context, code string) (Profile, error) {
	token, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	client := p.conf.Client(ctx, token)
	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Profile{}, fmt.Errorf("userinfo endpoint returned %d: %s", resp.StatusCode, body)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Profile{}, fmt.Errorf("decode userinfo response: %w", err)
	}

	profile := p.parseProfile(raw)
	if profile.Email == "" {
		return Profile{}, fmt.Errorf("userinfo response from %s did not include an email", p.name)
	}
	return profile, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolField(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ValidateHTTPSRequirement enforces that SSO redirect URLs use HTTPS except
// for loopback development addresses, matching OAuth 2.1 guidance.
func ValidateHTTPSRequirement(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL must not be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
		return fmt.Errorf("HTTPS is required outside of localhost (got %s)", rawURL)
	default:
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
}
