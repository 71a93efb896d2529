package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loapp/lofeed/internal/database"
)

// Persisted keys. The first two hold the outstanding authorization flow, the
// next three are the canonical token record, auth_tokens is the legacy blob
// written by earlier releases.
const (
	StateKey       = "auth_state"
	VerifierKey    = "code_verifier"
	AccessTokenKey = "access_token"
	RefreshKey     = "refresh_token"
	ExpiryKey      = "token_expiry"
	LegacyKey      = "auth_tokens"
)

// TokenRecord is the canonical authentication credential. It is either absent
// or fully populated: a non-empty access token and an expiry instant.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (t *TokenRecord) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

func (t *TokenRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_token", strings.Repeat("x", len(t.AccessToken))),
		slog.String("refresh_token", strings.Repeat("x", len(t.RefreshToken))),
		slog.Time("expires_at", t.ExpiresAt))
}

func newTokenRecord(res tokenResponse) *TokenRecord {
	expiresIn := res.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	return &TokenRecord{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
}

// legacyRecord is the single-blob JSON schema of earlier releases, with the
// expiry as a millisecond epoch.
type legacyRecord struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// TokenSource produces fresh token records when the stored one has expired.
type TokenSource interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenRecord, error)
	AcquireDirect(ctx context.Context) (*TokenRecord, error)
}

// Store owns the persisted token record and decides when it needs refreshing
// or re-acquiring.
type Store struct {
	mu  sync.Mutex
	kv  KV
	svc TokenSource
}

func NewStore(kv KV, svc TokenSource) *Store {
	return &Store{kv: kv, svc: svc}
}

// Load reads the persisted record, or nil when unauthenticated. A record found
// only under the legacy blob is upcast, written back in canonical form and the
// blob deleted, so the migration runs once.
func (s *Store) Load() (*TokenRecord, error) {
	access, err := s.kv.Get(AccessTokenKey)
	if errors.Is(err, database.ErrNotFound) {
		return s.migrateLegacy()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MsgFailedStorage, err)
	}

	refresh, err := s.kv.Get(RefreshKey)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", MsgFailedStorage, err)
	}

	raw, err := s.kv.Get(ExpiryKey)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", MsgFailedStorage, err)
	}

	expiry, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// An unreadable expiry means the record cannot be trusted.
		return nil, nil
	}

	return &TokenRecord{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiry,
	}, nil
}

func (s *Store) migrateLegacy() (*TokenRecord, error) {
	blob, err := s.kv.Get(LegacyKey)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MsgFailedStorage, err)
	}

	var legacy legacyRecord
	if err := json.Unmarshal([]byte(blob), &legacy); err != nil || legacy.AccessToken == "" {
		return nil, nil
	}

	rec := &TokenRecord{
		AccessToken:  legacy.AccessToken,
		RefreshToken: legacy.RefreshToken,
		ExpiresAt:    time.UnixMilli(legacy.ExpiresAt),
	}

	if err := s.Save(rec); err != nil {
		return nil, err
	}
	if err := s.kv.Delete(LegacyKey); err != nil {
		return nil, fmt.Errorf("%s: %w", MsgFailedStorage, err)
	}

	slog.Info("migrated legacy token record")

	return rec, nil
}

func (s *Store) Save(rec *TokenRecord) error {
	if err := s.kv.Set(AccessTokenKey, rec.AccessToken); err != nil {
		return fmt.Errorf("%s: %w", MsgFailedStorage, err)
	}
	if err := s.kv.Set(RefreshKey, rec.RefreshToken); err != nil {
		return fmt.Errorf("%s: %w", MsgFailedStorage, err)
	}
	if err := s.kv.Set(ExpiryKey, rec.ExpiresAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("%s: %w", MsgFailedStorage, err)
	}
	return nil
}

// GetValidToken returns a live access token, or "" when none can be produced
// and the user must authenticate again. An expired record is refreshed first;
// only when the refresh fails, or no refresh token exists, does the direct
// acquirer run. The whole read-check-refresh-write sequence is serialized so
// concurrent callers cannot race two refreshes against each other. Errors are
// reserved for storage failures.
func (s *Store) GetValidToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Load()
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", nil
	}

	if !rec.IsExpired() {
		return rec.AccessToken, nil
	}

	if rec.RefreshToken != "" {
		fresh, err := s.svc.Refresh(ctx, rec.RefreshToken)
		if err == nil {
			if fresh.RefreshToken == "" {
				fresh.RefreshToken = rec.RefreshToken
			}
			if err := s.Save(fresh); err != nil {
				return "", err
			}
			return fresh.AccessToken, nil
		}
		slog.Warn("token refresh failed, falling back to direct acquisition", "error", err)
	}

	fresh, err := s.svc.AcquireDirect(ctx)
	if err != nil || fresh == nil {
		if err != nil {
			slog.Warn("direct acquisition failed", "error", err)
		}
		return "", nil
	}

	if err := s.Save(fresh); err != nil {
		return "", err
	}

	return fresh.AccessToken, nil
}

// Logout clears every persisted key, both generations included. Clearing is
// best effort: every key gets a delete attempt and the failures come back
// joined, so the caller can still proceed to the unauthenticated state.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, key := range []string{StateKey, VerifierKey, AccessTokenKey, RefreshKey, ExpiryKey, LegacyKey} {
		if err := s.kv.Delete(key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}
