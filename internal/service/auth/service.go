package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	// ErrMisconfigured means the server itself cannot verify tokens.
	ErrMisconfigured = errors.New("server identity provider is not configured")
)

// MisconfiguredMessage is shown to callers when token verification fails
// because of server credentials.
const MisconfiguredMessage = "Server Firebase Admin SDK is not configured. Set GOOGLE_APPLICATION_CREDENTIALS or FIREBASE_SERVICE_ACCOUNT."

// Identity is a verified caller.
type Identity struct {
	UID     string
	Email   string
	Name    string
	Picture string
}

// Verifier checks a bearer token with the identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// ConfigStatus tells an operator which credentials the server was started with.
type ConfigStatus struct {
	HasExplicitJSON bool `json:"hasExplicitJson"`
	HasBucket       bool `json:"hasBucket"`
}

// credentialFailures are error fragments produced when the server has no
// usable credentials, as opposed to the caller presenting a bad token.
var credentialFailures = []string{
	"could not load the default credentials",
	"could not find default credentials",
	"default credentials",
	"invalid_grant",
	"enotfound",
	"no such host",
}

// Classify maps a verifier error onto ErrMisconfigured or ErrUnauthenticated.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrMisconfigured) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range credentialFailures {
		if strings.Contains(msg, fragment) {
			return fmt.Errorf("%w: %v", ErrMisconfigured, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
}

// Allowlist is the set of owner emails, compared case-insensitively.
type Allowlist map[string]struct{}

// ParseAllowlist reads a comma separated list of emails.
func ParseAllowlist(raw string) Allowlist {
	list := make(Allowlist)
	for _, part := range strings.Split(raw, ",") {
		if email := strings.ToLower(strings.TrimSpace(part)); email != "" {
			list[email] = struct{}{}
		}
	}
	return list
}

func (a Allowlist) Allows(email string) bool {
	_, ok := a[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Me describes the caller for the owner console.
type Me struct {
	OK      bool    `json:"ok"`
	Allowed bool    `json:"allowed"`
	Email   string  `json:"email"`
	UID     string  `json:"uid"`
	Name    *string `json:"name"`
	Picture *string `json:"picture"`
}

type AuthService struct {
	verifier  Verifier
	allowlist Allowlist
	status    ConfigStatus
}

func NewAuthService(verifier Verifier, allowlist Allowlist, status ConfigStatus) *AuthService {
	return &AuthService{
		verifier:  verifier,
		allowlist: allowlist,
		status:    status,
	}
}

// Status reports the credential configuration for misconfiguration responses.
func (s *AuthService) Status() ConfigStatus {
	return s.status
}

// Identify verifies the token without checking the allow-list.
func (s *AuthService) Identify(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	id, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, Classify(err)
	}
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	return id, nil
}

// Authenticate verifies the token and requires an allow-listed email.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Identity, error) {
	id, err := s.Identify(ctx, token)
	if err != nil {
		return nil, err
	}
	if !s.allowlist.Allows(id.Email) {
		return nil, ErrForbidden
	}
	return id, nil
}

// WhoAmI reports the caller and whether they may use the owner console.
func (s *AuthService) WhoAmI(ctx context.Context, token string) (*Me, error) {
	id, err := s.Identify(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Me{
		OK:      true,
		Allowed: s.allowlist.Allows(id.Email),
		Email:   id.Email,
		UID:     id.UID,
		Name:    optional(id.Name),
		Picture: optional(id.Picture),
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
