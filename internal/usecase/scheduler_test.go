package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChannelPublisher/internal/domain"
)

// manualDriver runs the job once per Fire call.
type manualDriver struct {
	mu      sync.Mutex
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *manualDriver) Fire(at time.Time) {
	d.mu.Lock()
	job := d.job
	d.mu.Unlock()
	job(at)
}

func TestSchedulerPublishesOnTrigger(t *testing.T) {
	ledger := &memLedger{candidates: []domain.Candidate{pending("a", "https://x.test/a", clock)}}
	pub := &fakePublisher{}
	p := NewPipeline(PipelineDeps{Ledger: ledger, Capturer: &fakeCapturer{}, Publisher: pub})

	driver := &manualDriver{}
	s := NewScheduler(driver, p, time.Second, nil)
	require.NoError(t, s.Start(context.Background()))

	driver.Fire(clock)
	driver.Fire(clock.Add(time.Hour))

	assert.Len(t, pub.posts, 1, "second run finds nothing pending")
	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerWithoutDriver(t *testing.T) {
	s := NewScheduler(nil, nil, 0, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
