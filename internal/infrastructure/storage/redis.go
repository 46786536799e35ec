package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/turtacn/cakeys/internal/config"
	"github.com/turtacn/cakeys/internal/domain/service"
	"github.com/turtacn/cakeys/pkg/errors"
)

const defaultRedisPrefix = "cakeys:"

// RedisStorage stores blobs as plain string values under prefix+name.
type RedisStorage struct {
	alias  string
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStorage connects a standalone or cluster client depending on the
// number of addresses.
func NewRedisStorage(alias string, cfg config.RedisConfig, prefix string) *RedisStorage {
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addresses,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	return NewRedisStorageWithClient(alias, rdb, prefix)
}

func NewRedisStorageWithClient(alias string, rdb redis.UniversalClient, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = defaultRedisPrefix
	} else if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisStorage{alias: alias, rdb: rdb, prefix: prefix}
}

var _ service.Storage = (*RedisStorage)(nil)

func (s *RedisStorage) Alias() string { return s.alias }

func (s *RedisStorage) Location(name string) string {
	return fmt.Sprintf("redis://%s%s", s.prefix, name)
}

func (s *RedisStorage) key(name string) string { return s.prefix + name }

func (s *RedisStorage) Save(ctx context.Context, name string, data []byte) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, s.key(clean), data, 0).Err(); err != nil {
		return "", errors.ErrStorageUnavailable(s.alias, err)
	}
	return clean, nil
}

func (s *RedisStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	data, err := s.rdb.Get(ctx, s.key(clean)).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, &fs.PathError{Op: "open", Path: s.Location(clean), Err: fs.ErrNotExist}
		}
		return nil, errors.ErrStorageUnavailable(s.alias, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *RedisStorage) Exists(ctx context.Context, name string) (bool, error) {
	clean, err := cleanName(name)
	if err != nil {
		return false, err
	}
	n, err := s.rdb.Exists(ctx, s.key(clean)).Result()
	if err != nil {
		return false, errors.ErrStorageUnavailable(s.alias, err)
	}
	return n == 1, nil
}

func (s *RedisStorage) Delete(ctx context.Context, name string) error {
	clean, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, s.key(clean)).Err(); err != nil {
		return errors.ErrStorageUnavailable(s.alias, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStorage) Close() error {
	return s.rdb.Close()
}
