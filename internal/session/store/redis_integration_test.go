//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"apim/internal/session/models"
	"apim/internal/session/store"
	"apim/pkg/platform/sentinel"
	"apim/pkg/testutil/containers"
)

type RedisSessionSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisSessionSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSessionSuite))
}

func (s *RedisSessionSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = store.NewRedis(s.redis.Client, time.Hour)
}

func (s *RedisSessionSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisSessionSuite) TestReplaceRotateLifecycle() {
	ctx := context.Background()

	s.Require().NoError(s.store.Replace(ctx, models.Session{
		UserID: "alice", RefreshValue: "r1", IssuedAt: time.Now(),
	}))

	s.Require().NoError(s.store.Rotate(ctx, "alice", "r1", "r2", time.Now()))

	found, err := s.store.Find(ctx, "alice")
	s.Require().NoError(err)
	s.Equal("r2", found.RefreshValue)

	s.Require().ErrorIs(s.store.Rotate(ctx, "alice", "r1", "r3", time.Now()), store.ErrSuperseded)

	s.Require().NoError(s.store.Delete(ctx, "alice"))
	_, err = s.store.Find(ctx, "alice")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisSessionSuite) TestConcurrentRotationSingleWinner() {
	ctx := context.Background()
	s.Require().NoError(s.store.Replace(ctx, models.Session{
		UserID: "alice", RefreshValue: "r0", IssuedAt: time.Now(),
	}))

	const workers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.store.Rotate(ctx, "alice", "r0", fmt.Sprintf("next-%d", i), time.Now()); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}
