package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"elearn-api/internal/domain"
)

// SessionStore guarda snapshots de usuario por id; su presencia es la
// autoridad de revocación para el refresh de tokens.
type SessionStore interface {
	Save(ctx context.Context, user domain.User, ttl time.Duration) error
	Get(ctx context.Context, userID string) (domain.User, bool, error)
	Delete(ctx context.Context, userID string) error
}

type memorySessionStore struct {
	mu    sync.Mutex
	items map[string]memorySession
}

type memorySession struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		items: make(map[string]memorySession),
	}
}

func (s *memorySessionStore) Save(_ context.Context, user domain.User, ttl time.Duration) error {
	if strings.TrimSpace(user.ID) == "" {
		return nil
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[user.ID] = memorySession{
		payload:   payload,
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *memorySessionStore) Get(_ context.Context, userID string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[userID]
	if !ok {
		return domain.User{}, false, nil
	}
	if time.Now().UTC().After(item.expiresAt) {
		delete(s.items, userID)
		return domain.User{}, false, nil
	}
	var user domain.User
	if err := json.Unmarshal(item.payload, &user); err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

func (s *memorySessionStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, userID)
	return nil
}

type redisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client) SessionStore {
	if client == nil {
		return nil
	}
	return &redisSessionStore{
		client: client,
		prefix: "auth:session:",
	}
}

func (s *redisSessionStore) Save(ctx context.Context, user domain.User, ttl time.Duration) error {
	if strings.TrimSpace(user.ID) == "" {
		return nil
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+user.ID, payload, ttl).Err()
}

func (s *redisSessionStore) Get(ctx context.Context, userID string) (domain.User, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	payload, err := s.client.Get(ctx, s.prefix+userID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	var user domain.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+userID).Err()
}
