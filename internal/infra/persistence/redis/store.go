// Package redis persists session records in Redis. Each record is a JSON
// string under its own key; a set indexes the known ids.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"testrig/pkg/domain"
)

var _ domain.SessionStore = (*Store)(nil)

const (
	defaultAddr = "localhost:6379"
	keyPrefix   = "testrig:session:"
	indexKey    = "testrig:sessions"
)

// Store is a go-redis backed session store.
type Store struct {
	client *goredis.Client
}

// NewStore connects to addr and verifies the connection.
func NewStore(ctx context.Context, addr string) (*Store, error) {
	if addr == "" {
		addr = defaultAddr
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *goredis.Client) *Store {
	return &Store{client: client}
}

func sessionKey(id string) string { return keyPrefix + id }

// Save writes the record and indexes its id atomically.
func (s *Store) Save(ctx context.Context, record domain.SessionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", record.ID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, sessionKey(record.ID), payload, 0)
		p.SAdd(ctx, indexKey, record.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %s: %w", record.ID, err)
	}
	return nil
}

// Load reads a record by id.
func (s *Store) Load(ctx context.Context, id string) (domain.SessionRecord, bool, error) {
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.SessionRecord{}, false, nil
	}
	if err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("get session %s: %w", id, err)
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return rec, true, nil
}

// List returns every indexed record ordered by id. Ids whose payload has
// expired or been removed out of band are skipped.
func (s *Store) List(ctx context.Context) ([]domain.SessionRecord, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}
	sort.Strings(ids)
	out := make([]domain.SessionRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Delete removes a record and its index entry.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var del *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		del = p.Del(ctx, sessionKey(id))
		p.SRem(ctx, indexKey, id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	return del.Val() > 0, nil
}

// Close closes the client.
func (s *Store) Close() error { return s.client.Close() }
