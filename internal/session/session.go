// Package session resolves the user a sale is attributed to.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/fitri99main/itongPOS-sub000/internal/kv"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
)

// Provider is the identity provider. Both lookups may legitimately report
// that nobody is signed in.
type Provider interface {
	// CachedUserID returns the user of the locally cached session.
	CachedUserID(ctx context.Context) (string, bool)
	// CurrentUserID asks the identity service for the current user.
	CurrentUserID(ctx context.Context) (string, bool, error)
}

// LookupFunc queries the identity service for the signed-in user.
type LookupFunc func(ctx context.Context) (string, bool, error)

// Cache is a Provider that remembers the last signed-in user in durable
// storage so sales keep their attribution across restarts while offline.
type Cache struct {
	mu     sync.RWMutex
	store  kv.Store
	userID string
	lookup LookupFunc
}

var _ Provider = (*Cache)(nil)

// NewCache creates a Cache. lookup may be nil when no identity service is
// reachable from this process.
func NewCache(store kv.Store, lookup LookupFunc) *Cache {
	return &Cache{store: store, lookup: lookup}
}

// Load restores the cached user from storage.
func (c *Cache) Load(ctx context.Context) error {
	userID, _, err := c.store.Get(ctx, kv.KeySessionUser)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
	return nil
}

// SignIn caches userID.
func (c *Cache) SignIn(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("empty user id")
	}
	if err := c.store.Set(ctx, kv.KeySessionUser, userID); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
	logging.Info("Session signed in", map[string]interface{}{"user_id": userID})
	return nil
}

// SignOut clears the cached user.
func (c *Cache) SignOut(ctx context.Context) error {
	if err := c.store.Delete(ctx, kv.KeySessionUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	c.mu.Lock()
	c.userID = ""
	c.mu.Unlock()
	logging.Info("Session signed out")
	return nil
}

// CachedUserID implements Provider.
func (c *Cache) CachedUserID(context.Context) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.userID != ""
}

// CurrentUserID implements Provider. Without a lookup it reports nobody.
func (c *Cache) CurrentUserID(ctx context.Context) (string, bool, error) {
	if c.lookup == nil {
		return "", false, nil
	}
	return c.lookup(ctx)
}

// ResolveUserID returns the acting user: the cached session first, then a
// fresh lookup. A failed lookup is returned only when there is no cached user.
func ResolveUserID(ctx context.Context, p Provider) (string, bool, error) {
	if p == nil {
		return "", false, nil
	}
	if id, ok := p.CachedUserID(ctx); ok && id != "" {
		return id, true, nil
	}
	id, ok, err := p.CurrentUserID(ctx)
	if err != nil {
		return "", false, err
	}
	if !ok || id == "" {
		return "", false, nil
	}
	return id, true, nil
}
