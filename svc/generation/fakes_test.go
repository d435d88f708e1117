package generation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gengate/pkg/assets"
	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/provider"
	"github.com/dmitrymomot/gengate/pkg/usage"
	"github.com/dmitrymomot/gengate/pkg/usage/usagetest"
	"github.com/dmitrymomot/gengate/svc/generation"
)

// fakeClient is a scripted backend.
type fakeClient struct {
	backend   provider.Backend
	submitErr error
	outcome   provider.Outcome
	hang      bool // Poll blocks until its context ends
	cost      float64

	submits atomic.Int32
	mu      sync.Mutex
	jobs    []provider.Job
}

func (f *fakeClient) Backend() provider.Backend { return f.backend }

func (f *fakeClient) Models() []provider.Model {
	return []provider.Model{{ID: "model-" + string(f.backend), Backend: f.backend}}
}

func (f *fakeClient) Submit(ctx context.Context, job provider.Job) (provider.Handle, error) {
	f.submits.Add(1)
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	if f.submitErr != nil {
		return provider.Handle{}, f.submitErr
	}
	return provider.Handle{Backend: f.backend, ID: "job-1", ModelID: job.ModelID}, nil
}

func (f *fakeClient) Poll(ctx context.Context, h provider.Handle, deadline time.Time) provider.Outcome {
	if f.hang {
		<-ctx.Done()
		return provider.Failure(provider.TimedOut(f.backend, ctx.Err()))
	}
	return f.outcome
}

func (f *fakeClient) EstimateCost(provider.Job, provider.Outcome) float64 { return f.cost }

func (f *fakeClient) lastJob(t *testing.T) provider.Job {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.jobs)
	return f.jobs[len(f.jobs)-1]
}

func succeeding(b provider.Backend, url string, cost float64) *fakeClient {
	return &fakeClient{backend: b, outcome: provider.Success(url), cost: cost}
}

func unavailable(b provider.Backend) *fakeClient {
	return &fakeClient{backend: b, submitErr: provider.Unavailable(b, errors.New("503"))}
}

func remoteFailure(b provider.Backend) *fakeClient {
	return &fakeClient{backend: b, outcome: provider.Failure(provider.Unavailable(b, provider.ErrRemoteJob))}
}

// countingStore counts commits and can fail them.
type countingStore struct {
	usage.Store
	commits   atomic.Int32
	releases  atomic.Int32
	commitErr error
}

func (s *countingStore) Commit(ctx context.Context, r usage.Reservation) error {
	s.commits.Add(1)
	if s.commitErr != nil {
		return s.commitErr
	}
	return s.Store.Commit(ctx, r)
}

func (s *countingStore) Release(ctx context.Context, r usage.Reservation) error {
	s.releases.Add(1)
	return s.Store.Release(ctx, r)
}

type fakeMirror struct {
	url string
	err error
}

func (m *fakeMirror) Mirror(_ context.Context, a assets.Asset) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.url, nil
}

type harness struct {
	clock   *usagetest.Clock
	store   *countingStore
	catalog *plans.Catalog
	d       *generation.Dispatcher
}

func newHarness(t *testing.T, clients []provider.Client, opts ...generation.Option) *harness {
	t.Helper()
	clock := usagetest.NewClock()
	catalog := usagetest.Catalog(t)
	store := &countingStore{Store: usage.NewMemoryStore(catalog, usage.WithClock(clock.Now))}

	d, err := generation.New(store, catalog, clients, opts...)
	require.NoError(t, err)
	return &harness{clock: clock, store: store, catalog: catalog, d: d}
}

// user creates an account on tier.
func (h *harness) user(t *testing.T, id int64, tier plans.Tier) int64 {
	t.Helper()
	ctx := context.Background()
	_, err := h.d.Account(ctx, id, usage.Identity{Username: "u"})
	require.NoError(t, err)
	if tier != plans.TierFree {
		require.NoError(t, h.d.Upgrade(ctx, id, tier))
	}
	return id
}

func (h *harness) count(t *testing.T, id int64, d plans.Dimension) int64 {
	t.Helper()
	acc, err := h.store.Snapshot(context.Background(), id)
	require.NoError(t, err)
	return acc.Count(d)
}

func (h *harness) pending(t *testing.T, id int64, d plans.Dimension) int64 {
	t.Helper()
	acc, err := h.store.Snapshot(context.Background(), id)
	require.NoError(t, err)
	return acc.PendingAmount(d, h.clock.Now())
}
