// Package token acquires the general bearer token shared by the health checks
// of one monitoring session.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"projectmonitor/internal/jsonpath"
	"projectmonitor/internal/logging"
	"projectmonitor/internal/models"
	"projectmonitor/internal/transport"
)

// ErrTokenNotFound is returned when the configured location is missing from
// the login response.
var ErrTokenNotFound = errors.New("token not found in login response")

// Session holds the current token of one monitoring session. It is written
// once per round before checks are dispatched and read by those checks.
type Session struct {
	mu    sync.RWMutex
	token string
}

// Current returns the most recently acquired token, possibly empty.
func (s *Session) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the current token.
func (s *Session) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Provider performs login calls.
type Provider struct {
	sender transport.Sender
	log    *logrus.Entry
}

// NewProvider creates a provider that logs in through sender.
func NewProvider(sender transport.Sender) *Provider {
	return &Provider{
		sender: sender,
		log:    logging.WithPrefix("token"),
	}
}

// Acquire logs in with login and stores the token in s. On failure the
// previous token is kept. It returns the token now current. A nil login
// performs no call.
func (p *Provider) Acquire(ctx context.Context, login *models.LoginForToken, s *Session) string {
	if login == nil {
		return s.Current()
	}

	token, err := p.login(ctx, login)
	if err != nil {
		p.log.WithError(err).WithField("path", login.Path).Warn("login for token failed, keeping previous token")
		return s.Current()
	}

	s.Set(token)
	p.log.WithField("path", login.Path).Debug("general token refreshed")
	return token
}

func (p *Provider) login(ctx context.Context, login *models.LoginForToken) (string, error) {
	resp, err := p.sender.Send(ctx, transport.Request{
		Method:  login.Method,
		URL:     login.Path,
		Headers: login.Headers,
		Body:    login.RequestBody,
	})
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}

	if login.TokenLocationInResponse == "" {
		if text, ok := transport.DecodeBody(resp.Body).(string); ok {
			return text, nil
		}
	}
	raw, found := jsonpath.Raw(resp.Body, login.TokenLocationInResponse)
	if !found {
		return "", fmt.Errorf("%w at %q", ErrTokenNotFound, login.TokenLocationInResponse)
	}
	return stringify(raw)
}

// stringify turns a raw JSON value into a token. Strings are unquoted; other
// values keep the text the server sent.
func stringify(raw []byte) (string, error) {
	switch {
	case string(raw) == "null":
		return "", ErrTokenNotFound
	case len(raw) > 0 && raw[0] == '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", fmt.Errorf("decode token: %w", err)
		}
		return text, nil
	default:
		return string(raw), nil
	}
}
