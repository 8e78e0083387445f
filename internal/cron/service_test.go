package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
	"github.com/mianhamzaathar/AIFORGE/pkg/metrics"
)

type fakeLock struct {
	acquired bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, lock Lock, m *metrics.CronJobMetrics, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: registry,
		Lock:     lock,
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	bad := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	service := newTestService(t, lock, nil, bad, ok)

	ran, err := service.runCycle(context.Background(), service.registry.Jobs())
	if !ran {
		t.Fatal("expected the cycle to run")
	}
	if err == nil || !errors.Is(err, bad.err) {
		t.Fatalf("expected combined job error, got %v", err)
	}
	if ok.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected each job to run once, got ok=%d bad=%d", ok.runs, bad.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected lock release, got %d", lock.releases)
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "ledger-reconcile"}
	service := newTestService(t, &fakeLock{acquired: true}, nil, job)

	ran, err := service.runCycle(context.Background(), service.registry.Jobs())
	if ran || err != nil {
		t.Fatalf("expected skipped cycle, ran=%v err=%v", ran, err)
	}
	if job.runs != 0 {
		t.Fatalf("job should not run without the lock, ran %d", job.runs)
	}
}

func TestServiceRunJob(t *testing.T) {
	reconcile := &testJob{name: "ledger-reconcile"}
	retention := &testJob{name: "outbox-retention"}
	service := newTestService(t, &fakeLock{}, nil, reconcile, retention)

	if err := service.RunJob(context.Background(), "outbox-retention"); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if retention.runs != 1 || reconcile.runs != 0 {
		t.Fatalf("only the named job should run, got reconcile=%d retention=%d", reconcile.runs, retention.runs)
	}
	if err := service.RunJob(context.Background(), "nope"); err == nil {
		t.Fatal("expected unknown job error")
	}

	held := newTestService(t, &fakeLock{acquired: true}, nil, &testJob{name: "ledger-reconcile"})
	if err := held.RunJob(context.Background(), "ledger-reconcile"); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "ledger-reconcile"}
	service := newTestService(t, &fakeLock{}, nil, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("canceled cycle should not start jobs, ran %d", job.runs)
	}
}

func TestServiceRecordsJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCronJobMetrics(reg)
	service := newTestService(t, &fakeLock{}, m, &testJob{name: "ok"}, &testJob{name: "bad", err: errors.New("boom")})

	_, _ = service.runCycle(context.Background(), service.registry.Jobs())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	outcomes := map[string]bool{}
	for _, family := range families {
		if family.GetName() != "aiforge_cron_job_runs_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" {
					outcomes[label.GetValue()] = true
				}
			}
		}
	}
	if !outcomes["success"] || !outcomes["failure"] {
		t.Fatalf("expected success and failure runs, got %v", outcomes)
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{Output: io.Discard})}); err == nil {
		t.Fatal("expected lock error")
	}
}
