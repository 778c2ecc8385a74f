// Package conference issues video-conferencing access tokens for room participants.
package conference

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const (
	MockURL         = "ws://localhost:7880"
	defaultTokenTTL = 6 * time.Hour
)

// Config holds LiveKit credentials. All three must be set for real tokens.
type Config struct {
	URL       string
	APIKey    string
	APISecret string
	TokenTTL  time.Duration
}

// Configured reports whether real tokens can be minted.
func (c Config) Configured() bool {
	return c.URL != "" && c.APIKey != "" && c.APISecret != ""
}

// Token is what a participant needs to connect.
type Token struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// TokenIssuer mints participant tokens for a room.
type TokenIssuer interface {
	IssueToken(room, identity string) (Token, error)
}

// NewIssuer returns a LiveKit issuer when cfg is complete, else the mock issuer.
func NewIssuer(cfg Config, clock clockwork.Clock) TokenIssuer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if !cfg.Configured() {
		return &MockIssuer{clock: clock}
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &LiveKitIssuer{config: cfg, clock: clock}
}

// VideoGrant is the LiveKit "video" claim.
type VideoGrant struct {
	Room           string `json:"room,omitempty"`
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	RoomCreate     bool   `json:"roomCreate,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
}

// Claims is the LiveKit access token body.
type Claims struct {
	jwt.RegisteredClaims
	Video *VideoGrant `json:"video,omitempty"`
}

// LiveKitIssuer signs HS256 access tokens with the API secret.
type LiveKitIssuer struct {
	config Config
	clock  clockwork.Clock
}

func (l *LiveKitIssuer) IssueToken(room, identity string) (Token, error) {
	allow := true
	signed, err := l.sign(identity, &VideoGrant{
		Room:           room,
		RoomJoin:       true,
		CanPublish:     &allow,
		CanSubscribe:   &allow,
		CanPublishData: &allow,
	})
	if err != nil {
		return Token{}, err
	}
	return Token{Token: signed, URL: l.config.URL}, nil
}

// serviceToken authorizes RoomService calls.
func (l *LiveKitIssuer) serviceToken() (string, error) {
	return l.sign("", &VideoGrant{RoomCreate: true})
}

func (l *LiveKitIssuer) sign(identity string, grant *VideoGrant) (string, error) {
	now := l.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    l.config.APIKey,
			Subject:   identity,
			ID:        identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(l.config.TokenTTL)),
		},
		Video: grant,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(l.config.APISecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// MockIssuer hands out opaque development tokens.
type MockIssuer struct {
	clock clockwork.Clock
}

func (m *MockIssuer) IssueToken(room, identity string) (Token, error) {
	return Token{
		Token: fmt.Sprintf("mock-token-%s-%s-%d", room, identity, m.clock.Now().UnixMilli()),
		URL:   MockURL,
	}, nil
}

// httpURL maps a ws(s):// server URL to the http(s):// base of its API.
func httpURL(u string) string {
	switch {
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://")
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://")
	}
	return u
}
