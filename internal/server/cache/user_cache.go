package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/contactbook/internal/server/models"
)

// userKeyPrefix is the key pattern for cached user snapshots.
const userKeyPrefix = "user:"

// UserSnapshot is the serialized shadow of a user record kept in the cache.
// It deliberately excludes the password hash; everything else needed to serve
// an authenticated request is present, so a cache hit skips the directory.
type UserSnapshot struct {
	ID           int64       `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	Avatar       string      `json:"avatar,omitempty"`
	Confirmed    bool        `json:"confirmed"`
	Role         models.Role `json:"role"`
	RefreshToken string      `json:"refresh_token,omitempty"`
}

// snapshotFromUser builds the cacheable view of a user record.
func snapshotFromUser(u *models.User) *UserSnapshot {
	return &UserSnapshot{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Avatar:       u.Avatar,
		Confirmed:    u.Confirmed,
		Role:         u.Role,
		RefreshToken: u.RefreshToken,
	}
}

// User reconstructs the strongly-typed user view from the snapshot, so the
// cache-hit and cache-miss paths hand callers the same shape.
func (s *UserSnapshot) User() *models.User {
	return &models.User{
		ID:           s.ID,
		Username:     s.Username,
		Email:        s.Email,
		Avatar:       s.Avatar,
		Confirmed:    s.Confirmed,
		Role:         s.Role,
		RefreshToken: s.RefreshToken,
	}
}

// UserCache is the typed session cache over a raw Cache. TTL matches the
// access-token lifetime so entries never outlive the credential that would
// read them.
type UserCache struct {
	cache Cache
	ttl   time.Duration
}

func NewUserCache(c Cache, ttl time.Duration) *UserCache {
	return &UserCache{cache: c, ttl: ttl}
}

// GetUser returns the cached snapshot for username, or common.ErrCacheMiss.
// A corrupt entry is reported as an error; callers treat it as a miss.
func (uc *UserCache) GetUser(ctx context.Context, username string) (*models.User, error) {
	data, err := uc.cache.Get(ctx, userKeyPrefix+username)
	if err != nil {
		return nil, err
	}

	snap := &UserSnapshot{}
	if err := json.Unmarshal([]byte(data), snap); err != nil {
		return nil, fmt.Errorf("cache decode error: %w", err)
	}

	return snap.User(), nil
}

// SetUser writes the snapshot for a user and stamps it with the cache TTL.
func (uc *UserCache) SetUser(ctx context.Context, u *models.User) error {
	data, err := json.Marshal(snapshotFromUser(u))
	if err != nil {
		return fmt.Errorf("cache encode error: %w", err)
	}

	key := userKeyPrefix + u.Username
	if err := uc.cache.Set(ctx, key, string(data)); err != nil {
		return err
	}
	return uc.cache.Expire(ctx, key, uc.ttl)
}

// Close releases the underlying store.
func (uc *UserCache) Close() error {
	return uc.cache.Close()
}
