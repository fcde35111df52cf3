package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/contactbook/internal/common"
	"github.com/dmitrijs2005/contactbook/internal/server/models"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	c, err := NewRedisCache(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_GetMiss(t *testing.T) {
	c, _ := newRedisCache(t)

	_, err := c.Get(context.Background(), "absent")
	if !errors.Is(err, common.ErrCacheMiss) {
		t.Fatalf("expected common.ErrCacheMiss, got %v", err)
	}
}

func TestRedisCache_SetExpireGet(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := c.Expire(ctx, "k", time.Hour); err != nil {
		t.Fatalf("Expire error: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "v" {
		t.Fatalf("value mismatch: got %q", got)
	}

	// Past the TTL the entry is gone.
	mr.FastForward(2 * time.Hour)
	_, err = c.Get(ctx, "k")
	if !errors.Is(err, common.ErrCacheMiss) {
		t.Fatalf("expected miss after TTL, got %v", err)
	}
}

func TestUserCache_RoundTrip(t *testing.T) {
	c, _ := newRedisCache(t)
	uc := NewUserCache(c, time.Hour)
	ctx := context.Background()

	u := &models.User{
		ID:           7,
		Username:     "alice",
		Email:        "alice@x.com",
		Role:         models.RoleAdmin,
		Confirmed:    true,
		Avatar:       "http://cdn/x.png",
		RefreshToken: "rt-1",
	}
	if err := uc.SetUser(ctx, u); err != nil {
		t.Fatalf("SetUser error: %v", err)
	}

	got, err := uc.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if got.ID != u.ID || got.Username != u.Username || got.Email != u.Email ||
		got.Role != u.Role || !got.Confirmed || got.Avatar != u.Avatar ||
		got.RefreshToken != u.RefreshToken {
		t.Fatalf("snapshot mismatch: %+v", got)
	}
	if got.PasswordHash != "" {
		t.Fatalf("password hash must never be cached")
	}
}

func TestUserCache_KeyPattern(t *testing.T) {
	c, mr := newRedisCache(t)
	uc := NewUserCache(c, time.Hour)

	u := &models.User{ID: 1, Username: "bob", Email: "bob@x.com", Role: models.RoleUser}
	if err := uc.SetUser(context.Background(), u); err != nil {
		t.Fatalf("SetUser error: %v", err)
	}

	if !mr.Exists("user:bob") {
		t.Fatalf("expected key user:bob to exist")
	}
	ttl := mr.TTL("user:bob")
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestUserCache_CorruptEntry(t *testing.T) {
	c, mr := newRedisCache(t)
	uc := NewUserCache(c, time.Hour)

	mr.Set("user:eve", "{not json")

	_, err := uc.GetUser(context.Background(), "eve")
	if err == nil {
		t.Fatalf("expected error for corrupt entry")
	}
}

func TestMemoryCache_HonorsTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := c.Expire(ctx, "k", -time.Second); err != nil {
		t.Fatalf("Expire error: %v", err)
	}

	_, err := c.Get(ctx, "k")
	if !errors.Is(err, common.ErrCacheMiss) {
		t.Fatalf("expected miss for expired entry, got %v", err)
	}
}
