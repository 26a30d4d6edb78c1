package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vk/xfiber/internal/registry"
)

// Storage keys of the token pair.
const (
	AccessTokenKey  = "auth.accessToken"
	RefreshTokenKey = "auth.refreshToken"
)

// ErrNoToken is returned when no access token is set.
var ErrNoToken = errors.New("auth: no access token")

// Auth keeps the token pair of the current session and mirrors it into a
// storage area when one is given.
type Auth struct {
	mu      sync.RWMutex
	access  string
	refresh string
	area    registry.KeyValue
	parser  *jwt.Parser
	logger  *slog.Logger
}

// NewAuth creates the auth facade. area may be nil.
func NewAuth(area registry.KeyValue, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auth{area: area, parser: jwt.NewParser(), logger: logger}
}

// Restore loads a previously stored token pair from the storage area.
func (a *Auth) Restore(ctx context.Context) error {
	if a.area == nil {
		return nil
	}
	access, _, err := a.area.Get(ctx, AccessTokenKey)
	if err != nil {
		return fmt.Errorf("failed to restore access token: %w", err)
	}
	refresh, _, err := a.area.Get(ctx, RefreshTokenKey)
	if err != nil {
		return fmt.Errorf("failed to restore refresh token: %w", err)
	}
	a.mu.Lock()
	a.access, a.refresh = access, refresh
	a.mu.Unlock()
	return nil
}

// SetTokens replaces the token pair.
func (a *Auth) SetTokens(access, refresh string) {
	a.mu.Lock()
	a.access, a.refresh = access, refresh
	a.mu.Unlock()

	if a.area == nil {
		return
	}
	ctx := context.Background()
	if err := a.area.Set(ctx, AccessTokenKey, access); err != nil {
		a.logger.Warn("Failed to store access token.", "error", err)
	}
	if err := a.area.Set(ctx, RefreshTokenKey, refresh); err != nil {
		a.logger.Warn("Failed to store refresh token.", "error", err)
	}
}

// AccessToken returns the current access token.
func (a *Auth) AccessToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.access
}

// RefreshToken returns the current refresh token.
func (a *Auth) RefreshToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.refresh
}

// TokenPayload decodes the claims of the access token into dst. The
// signature is not verified.
func (a *Auth) TokenPayload(dst any) error {
	access := a.AccessToken()
	if access == "" {
		return ErrNoToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := a.parser.ParseUnverified(access, claims); err != nil {
		return fmt.Errorf("failed to parse access token: %w", err)
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("failed to encode token claims: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode token claims: %w", err)
	}
	return nil
}
