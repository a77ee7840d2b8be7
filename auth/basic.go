package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/use-agent/authcrawl/engine"
	"github.com/use-agent/authcrawl/models"
)

// HeaderName is the request header the hook sets.
const HeaderName = "Authorization"

// Credentials is an HTTP Basic-Auth username/password pair. It is supplied
// once at construction and never logged.
type Credentials struct {
	Username string
	Password string
}

// Validate rejects credentials that cannot be encoded unambiguously:
// non-ASCII or control bytes in either field, and a colon in the username.
func (c Credentials) Validate() error {
	if strings.Contains(c.Username, ":") {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "username must not contain ':'", nil)
	}
	if i := invalidByte(c.Username); i >= 0 {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("username has a non-printable-ASCII byte at offset %d", i), nil)
	}
	if i := invalidByte(c.Password); i >= 0 {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("password has a non-printable-ASCII byte at offset %d", i), nil)
	}
	return nil
}

// Anonymous reports whether both fields are empty. The header is still
// well formed ("Basic Og==") but no server will accept it.
func (c Credentials) Anonymous() bool {
	return c.Username == "" && c.Password == ""
}

// HeaderValue returns "Basic " + base64(username ":" password).
func (c Credentials) HeaderValue() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password))
}

// String keeps the password out of fmt output.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: ***}", c.Username)
}

// LogValue keeps the password out of slog output.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("username", c.Username))
}

// BuildHook validates creds and returns a page hook that stamps the
// Authorization header onto every page context it is given. The header
// value is computed once, so every invocation sets the same bytes.
func BuildHook(creds Credentials) (engine.PageHook, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	headers := map[string]string{HeaderName: creds.HeaderValue()}

	return func(_ context.Context, pc engine.PageContext) error {
		// Backends may keep the map; hand each call its own copy.
		h := make(map[string]string, len(headers))
		for k, v := range headers {
			h[k] = v
		}
		if err := pc.SetExtraHeaders(h); err != nil {
			return fmt.Errorf("auth: set basic-auth header: %w", err)
		}
		return nil
	}, nil
}

// invalidByte returns the offset of the first byte outside printable
// ASCII (0x20-0x7E), or -1.
func invalidByte(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return i
		}
	}
	return -1
}
