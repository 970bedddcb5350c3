package cleanup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentmem/pkg/cleanup"
	"github.com/codeready-toolchain/agentmem/pkg/config"
)

type fakeStore struct {
	swept   int
	calls   int
	failOnce bool
}

func (f *fakeStore) SweepExpiredCapsules(_ context.Context) (int, error) {
	f.calls++
	if f.failOnce && f.calls == 1 {
		return 0, errors.New("boom")
	}
	return f.swept, nil
}

func TestStartRunsAnImmediateSweep(t *testing.T) {
	fs := &fakeStore{swept: 3}
	svc := cleanup.NewService(config.RetentionConfig{CapsuleSweepInterval: time.Hour}, fs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	require.Eventually(t, func() bool { return fs.calls >= 1 }, time.Second, 10*time.Millisecond)
}

func TestSweepFailureDoesNotStopTheLoop(t *testing.T) {
	fs := &fakeStore{failOnce: true}
	svc := cleanup.NewService(config.RetentionConfig{CapsuleSweepInterval: 20 * time.Millisecond}, fs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	require.Eventually(t, func() bool { return fs.calls >= 2 }, time.Second, 10*time.Millisecond)
}

func TestStopWaitsForLoopExit(t *testing.T) {
	fs := &fakeStore{}
	svc := cleanup.NewService(config.RetentionConfig{CapsuleSweepInterval: time.Hour}, fs, nil)

	svc.Start(context.Background())
	svc.Stop()

	require.GreaterOrEqual(t, fs.calls, 1)
}
