package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	sessionKeyPrefix = "inkwell-session||"
	tokensSetKey     = "inkwell-sessions"
)

type RedisSessionStore struct {
	redisClient *redis.Client
}

func NewRedisSessionStore(redisClient *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{
		redisClient: redisClient,
	}
}

func (s *RedisSessionStore) Create(ctx context.Context, token string, expiresAt time.Time) error {
	sessionKey := sessionKeyPrefix + token
	if err := s.redisClient.Set(ctx, sessionKey, expiresAt.Unix(), 0).Err(); err != nil {
		return err
	}
	// track the token in the set of all sessions
	return s.redisClient.SAdd(ctx, tokensSetKey, token).Err()
}

func (s *RedisSessionStore) ExpiresAt(ctx context.Context, token string) (time.Time, error) {
	sessionKey := sessionKeyPrefix + token
	cmd := s.redisClient.Get(ctx, sessionKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, ErrSessionNotFound
		}
		return time.Time{}, err
	}

	expiresAtUnix, err := strconv.ParseInt(cmd.Val(), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(expiresAtUnix, 0), nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) (bool, error) {
	sessionKey := sessionKeyPrefix + token
	cmdDel := s.redisClient.Del(ctx, sessionKey)
	if err := cmdDel.Err(); err != nil {
		return false, err
	}
	if err := s.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
		return false, err
	}
	return cmdDel.Val() > 0, nil
}

func (s *RedisSessionStore) Tokens(ctx context.Context) ([]string, error) {
	cmd := s.redisClient.SMembers(ctx, tokensSetKey)
	if err := cmd.Err(); err != nil {
		return nil, err
	}
	return cmd.Val(), nil
}
