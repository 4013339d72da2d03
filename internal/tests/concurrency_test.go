package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/blingmoon/stepchain/internal/archive"
	"github.com/blingmoon/stepchain/internal/commonregister"
	"github.com/blingmoon/stepchain/internal/logging"
	"github.com/blingmoon/stepchain/internal/moderation"
	"github.com/blingmoon/stepchain/workflow"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 同一个运行实例的并发 resume 只有一个能成功
func TestConcurrentResume(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	cfg := newTestConfig("http://127.0.0.1:1", "http://127.0.0.1:1")
	cfg.Lock.Backend = "redis"
	cfg.Lock.RedisAddr = server.Addr()
	registry, err := commonregister.Register(ctx, cfg, logging.Discard(), commonregister.Options{Scorer: moderation.FixedScorer(0.9)})
	require.NoError(t, err)
	defer registry.Close()

	const runs = 5
	runIDs := make([]string, 0, runs)
	for i := 0; i < runs; i++ {
		snapshot, err := registry.Moderation.Submit(ctx, moderation.ContentInput{Content: fmt.Sprintf("投稿 %d", i), ContentID: fmt.Sprintf("c-%d", i)})
		require.NoError(t, err)
		runIDs = append(runIDs, snapshot.RunID)
	}
	require.Len(t, registry.Moderation.Pending(), runs)

	const attempts = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded = make(map[string]int)
		rejected  int
	)
	for _, runID := range runIDs {
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(runID string) {
				defer wg.Done()
				_, err := registry.Moderation.Resume(ctx, runID, moderation.Decision{ModeratorDecision: moderation.DecisionApprove})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded[runID]++
				case errors.Is(err, workflow.ErrRunLocked), errors.Is(err, moderation.ErrRunNotFound), errors.Is(err, workflow.ErrNoSuchSuspension):
					rejected++
				default:
					t.Errorf("unexpected err: %v", err)
				}
			}(runID)
		}
	}
	wg.Wait()

	for _, runID := range runIDs {
		assert.Equal(t, 1, succeeded[runID], runID)
	}
	assert.Equal(t, runs*(attempts-1), rejected)
	assert.Empty(t, registry.Moderation.Pending())
	assert.Empty(t, server.Keys())

	count, err := registry.Repo.CountModerationAudit(ctx, &archive.QueryModerationAuditParams{FinalStatusIn: []string{moderation.StatePublished}})
	require.NoError(t, err)
	assert.Equal(t, int64(runs), count)
}
