package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"kb-api/domain"
)

type backend interface {
	ListCards(ctx context.Context) ([]domain.Card, error)
	InsertCard(ctx context.Context, card domain.Card) (domain.Card, error)
	UpdateCard(ctx context.Context, id string, upd domain.CardUpdate, updatedAt int64) error
	DeleteCard(ctx context.Context, id string) error
	ReassignCategory(ctx context.Context, oldName, newName string) error
	ListCategories(ctx context.Context) ([]string, error)
	InsertCategory(ctx context.Context, name string) error
	DeleteCategory(ctx context.Context, name string) error
	ListUsers(ctx context.Context) ([]domain.User, error)
	InsertUser(ctx context.Context, user domain.User) (domain.User, error)
	UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) error
	DeleteUser(ctx context.Context, id string) error
	LookupCredentials(ctx context.Context, username, password string) (*domain.User, error)
}

// Cache wraps a Storage instance with Redis-backed caching for the three
// list reads. Every write evicts the keys it may have invalidated; the
// credential lookup always goes to the backing store.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis
// client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

const (
	cardsCacheKey      = "kb:cards"
	categoriesCacheKey = "kb:categories"
	usersCacheKey      = "kb:users"
)

func (c *Cache) ListCards(ctx context.Context) ([]domain.Card, error) {
	var cards []domain.Card
	if c.loadFromCache(ctx, cardsCacheKey, &cards) {
		return cards, nil
	}
	cards, err := c.base.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, cardsCacheKey, cards)
	return cards, nil
}

func (c *Cache) ListCategories(ctx context.Context) ([]string, error) {
	var names []string
	if c.loadFromCache(ctx, categoriesCacheKey, &names) {
		return names, nil
	}
	names, err := c.base.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, categoriesCacheKey, names)
	return names, nil
}

func (c *Cache) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if c.loadFromCache(ctx, usersCacheKey, &users) {
		return users, nil
	}
	users, err := c.base.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, usersCacheKey, users)
	return users, nil
}

func (c *Cache) InsertCard(ctx context.Context, card domain.Card) (domain.Card, error) {
	stored, err := c.base.InsertCard(ctx, card)
	if err != nil {
		return domain.Card{}, err
	}
	c.evict(ctx, cardsCacheKey)
	return stored, nil
}

func (c *Cache) UpdateCard(ctx context.Context, id string, upd domain.CardUpdate, updatedAt int64) error {
	if err := c.base.UpdateCard(ctx, id, upd, updatedAt); err != nil {
		return err
	}
	c.evict(ctx, cardsCacheKey)
	return nil
}

func (c *Cache) DeleteCard(ctx context.Context, id string) error {
	if err := c.base.DeleteCard(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, cardsCacheKey)
	return nil
}

func (c *Cache) ReassignCategory(ctx context.Context, oldName, newName string) error {
	err := c.base.ReassignCategory(ctx, oldName, newName)
	// A failed reassign may still have rewritten some cards.
	c.evict(ctx, cardsCacheKey)
	return err
}

func (c *Cache) InsertCategory(ctx context.Context, name string) error {
	if err := c.base.InsertCategory(ctx, name); err != nil {
		return err
	}
	c.evict(ctx, categoriesCacheKey)
	return nil
}

func (c *Cache) DeleteCategory(ctx context.Context, name string) error {
	if err := c.base.DeleteCategory(ctx, name); err != nil {
		return err
	}
	c.evict(ctx, categoriesCacheKey)
	return nil
}

func (c *Cache) InsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	stored, err := c.base.InsertUser(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	c.evict(ctx, usersCacheKey)
	return stored, nil
}

func (c *Cache) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) error {
	if err := c.base.UpdateUser(ctx, id, upd); err != nil {
		return err
	}
	c.evict(ctx, usersCacheKey)
	return nil
}

func (c *Cache) DeleteUser(ctx context.Context, id string) error {
	if err := c.base.DeleteUser(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, usersCacheKey)
	return nil
}

func (c *Cache) LookupCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	return c.base.LookupCredentials(ctx, username, password)
}

func (c *Cache) loadFromCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}
