package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piaoger/fisher/internal/hook"
	"github.com/piaoger/fisher/internal/provider"
	"github.com/piaoger/fisher/internal/scheduler"
)

type fakeSnapshots struct {
	snapshot *hook.Snapshot
}

func (f *fakeSnapshots) Current() *hook.Snapshot { return f.snapshot }

type fakeLimiter struct {
	blocked  map[string]bool
	recorded []string
}

func (f *fakeLimiter) IsBlocked(address string) bool { return f.blocked[address] }
func (f *fakeLimiter) RecordInvalid(address string)  { f.recorded = append(f.recorded, address) }

type fakeSubmitter struct {
	jobs []*scheduler.Job
	err  error
}

func (f *fakeSubmitter) Submit(job *scheduler.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func snapshotWith(t *testing.T, hooks ...*hook.Hook) *hook.Snapshot {
	t.Helper()
	snap, err := hook.NewSnapshot(1, hooks)
	require.NoError(t, err)
	return snap
}

func standaloneHook(t *testing.T, name, secret string) *hook.Hook {
	t.Helper()
	cfg, err := provider.ParseConfig("Standalone", []byte(`{"secret": "`+secret+`"}`))
	require.NoError(t, err)
	return &hook.Hook{
		Name:      name,
		Exec:      "/hooks/" + name,
		Parallel:  true,
		Providers: []provider.Config{cfg},
	}
}

func secretRequest(secret, addr string) *provider.Request {
	return &provider.Request{
		Method:  "POST",
		Headers: map[string]string{provider.SecretHeader: secret},
		Body:    []byte(`{"hello": "world"}`),
		Address: addr,
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeLimiter, *fakeSubmitter) {
	t.Helper()
	snapshots := &fakeSnapshots{snapshot: snapshotWith(t, standaloneHook(t, "deploy.sh", "topsecret"))}
	limiter := &fakeLimiter{blocked: make(map[string]bool)}
	submitter := &fakeSubmitter{}
	return New(snapshots, limiter, submitter), limiter, submitter
}

func TestDispatchAdmitted(t *testing.T) {
	d, limiter, submitter := newTestDispatcher(t)

	result := d.Dispatch("deploy.sh", secretRequest("topsecret", "10.0.0.1"))

	assert.Equal(t, Admitted, result.Kind)
	assert.NotEmpty(t, result.JobID)
	require.Len(t, submitter.jobs, 1)
	assert.Equal(t, "deploy.sh", submitter.jobs[0].Hook.Name)
	assert.Equal(t, provider.KindStandalone, submitter.jobs[0].Provider)
	assert.Empty(t, limiter.recorded)
}

func TestDispatchNotFound(t *testing.T) {
	d, limiter, submitter := newTestDispatcher(t)

	result := d.Dispatch("missing.sh", secretRequest("topsecret", "10.0.0.1"))

	assert.Equal(t, NotFound, result.Kind)
	assert.Empty(t, submitter.jobs)
	// Unknown paths are not invalid requests.
	assert.Empty(t, limiter.recorded)
}

func TestDispatchInvalidRecordsAddress(t *testing.T) {
	d, limiter, submitter := newTestDispatcher(t)

	result := d.Dispatch("deploy.sh", secretRequest("wrong", "10.0.0.1"))

	assert.Equal(t, InvalidRequest, result.Kind)
	assert.NotEmpty(t, result.Reason)
	assert.Empty(t, submitter.jobs)
	assert.Equal(t, []string{"10.0.0.1"}, limiter.recorded)
}

func TestDispatchRateLimited(t *testing.T) {
	d, limiter, submitter := newTestDispatcher(t)
	limiter.blocked["10.0.0.1"] = true

	// Blocked addresses are refused before validation, valid secret or not.
	result := d.Dispatch("deploy.sh", secretRequest("topsecret", "10.0.0.1"))

	assert.Equal(t, RateLimited, result.Kind)
	assert.Empty(t, submitter.jobs)
}

func TestDispatchIgnored(t *testing.T) {
	cfg, err := provider.ParseConfig("GitLab", []byte(`{"secret": "tok", "events": ["push"]}`))
	require.NoError(t, err)
	h := &hook.Hook{Name: "ci.sh", Exec: "/hooks/ci.sh", Parallel: true, Providers: []provider.Config{cfg}}

	limiter := &fakeLimiter{blocked: make(map[string]bool)}
	submitter := &fakeSubmitter{}
	d := New(&fakeSnapshots{snapshot: snapshotWith(t, h)}, limiter, submitter)

	req := &provider.Request{
		Method: "POST",
		Headers: map[string]string{
			"X-Gitlab-Token": "tok",
			"X-Gitlab-Event": "Note Hook",
		},
		Address: "10.0.0.1",
	}

	result := d.Dispatch("ci.sh", req)

	assert.Equal(t, Ignored, result.Kind)
	assert.Empty(t, submitter.jobs)
	assert.Empty(t, limiter.recorded)
}

func TestDispatchShuttingDown(t *testing.T) {
	d, _, submitter := newTestDispatcher(t)
	submitter.err = scheduler.ErrShuttingDown

	result := d.Dispatch("deploy.sh", secretRequest("topsecret", "10.0.0.1"))

	assert.Equal(t, ShuttingDown, result.Kind)
}

func TestDispatchNilLimiter(t *testing.T) {
	snapshots := &fakeSnapshots{snapshot: snapshotWith(t, standaloneHook(t, "deploy.sh", "topsecret"))}
	submitter := &fakeSubmitter{}
	d := New(snapshots, nil, submitter)

	assert.Equal(t, InvalidRequest, d.Dispatch("deploy.sh", secretRequest("wrong", "10.0.0.1")).Kind)
	assert.Equal(t, Admitted, d.Dispatch("deploy.sh", secretRequest("topsecret", "10.0.0.1")).Kind)
}
