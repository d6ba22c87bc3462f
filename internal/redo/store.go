package redo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
	"github.com/redis/go-redis/v9"
)

// Store keeps per-user trainer state in redis: the redo queue of position ids,
// the puzzle rating and the chapter cursor of every study.
type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Connect parses a redis:// url and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *Store) keyQueue(user string) string  { return "redo:" + strings.TrimSpace(user) }
func (s *Store) keyRating(user string) string { return "rating:" + strings.TrimSpace(user) }
func (s *Store) keyCursor(studyID, user string) string {
	return "study:" + strings.TrimSpace(studyID) + ":cursor:" + strings.TrimSpace(user)
}

// Push appends ids to the user's queue, skipping ones already queued.
func (s *Store) Push(ctx context.Context, user string, ids ...string) error {
	if strings.TrimSpace(user) == "" || len(ids) == 0 {
		return nil
	}
	queued, err := s.rdb.LRange(ctx, s.keyQueue(user), 0, -1).Result()
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(queued))
	for _, id := range queued {
		seen[id] = struct{}{}
	}
	fresh := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return nil
	}
	return s.rdb.RPush(ctx, s.keyQueue(user), fresh...).Err()
}

// Head returns the oldest queued id; ok is false for an empty queue.
func (s *Store) Head(ctx context.Context, user string) (id string, ok bool, err error) {
	id, err = s.rdb.LIndex(ctx, s.keyQueue(user), 0).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *Store) Remove(ctx context.Context, user, id string) error {
	return s.rdb.LRem(ctx, s.keyQueue(user), 0, id).Err()
}

func (s *Store) Len(ctx context.Context, user string) (int64, error) {
	return s.rdb.LLen(ctx, s.keyQueue(user)).Result()
}

// Rating returns the stored puzzle rating or puzgen.DefaultElo.
func (s *Store) Rating(ctx context.Context, user string) (int, error) {
	raw, err := s.rdb.Get(ctx, s.keyRating(user)).Result()
	if errors.Is(err, redis.Nil) {
		return puzgen.DefaultElo, nil
	}
	if err != nil {
		return 0, err
	}
	elo, err := strconv.Atoi(raw)
	if err != nil {
		return puzgen.DefaultElo, nil
	}
	return elo, nil
}

func (s *Store) SetRating(ctx context.Context, user string, elo int) error {
	return s.rdb.Set(ctx, s.keyRating(user), elo, 0).Err()
}

// NextChapter returns the chapter index to serve out of total and moves the
// cursor forward, wrapping around at the end of the study.
func (s *Store) NextChapter(ctx context.Context, studyID, user string, total int) (int, error) {
	if total <= 0 {
		return 0, fmt.Errorf("study %s has no chapters", studyID)
	}
	n, err := s.rdb.Incr(ctx, s.keyCursor(studyID, user)).Result()
	if err != nil {
		return 0, err
	}
	return int((n - 1) % int64(total)), nil
}
