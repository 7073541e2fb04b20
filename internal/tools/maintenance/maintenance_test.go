package maintenance

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
)

var sweepBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "data/coordinator.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.Timeout != 5*time.Minute {
		t.Fatalf("expected default timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxIdle != 30*time.Minute {
		t.Fatalf("expected default max idle, got %v", cfg.MaxIdle)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	args := []string{
		"-db-path", "scratch.db",
		"-stale",
		"-max-idle", "10m",
		"-json",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "scratch.db" {
		t.Fatalf("expected flag override for db path, got %q", cfg.DBPath)
	}
	if !cfg.Stale || cfg.MaxIdle != 10*time.Minute || !cfg.JSONOutput {
		t.Fatalf("expected flag overrides, got %+v", cfg)
	}
}

func TestStaleSweepReportsMarkedCount(t *testing.T) {
	var gotCutoff time.Time
	store := &fakeSweepStore{
		markInactive: func(_ context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 3, nil
		},
	}
	var out bytes.Buffer
	cfg := Config{Stale: true, MaxIdle: 30 * time.Minute}
	if err := runWithDeps(context.Background(), cfg, store, sweepBase, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := sweepBase.Add(-30 * time.Minute); !gotCutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, gotCutoff)
	}
	if !strings.Contains(out.String(), "deactivated 3 sessions") {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if !store.closed {
		t.Fatal("expected store to be closed")
	}
}

func TestStaleSweepDryRunListsCandidates(t *testing.T) {
	store := &fakeSweepStore{
		listActive: func(_ context.Context) ([]domain.Session, error) {
			return []domain.Session{
				{ID: "session-old", LastActivity: sweepBase.Add(-time.Hour)},
				{ID: "session-fresh", LastActivity: sweepBase.Add(-time.Minute)},
			}, nil
		},
		markInactive: func(_ context.Context, _ time.Time) (int64, error) {
			t.Fatal("dry run must not deactivate sessions")
			return 0, nil
		},
	}
	var out bytes.Buffer
	cfg := Config{Stale: true, MaxIdle: 30 * time.Minute, DryRun: true}
	if err := runWithDeps(context.Background(), cfg, store, sweepBase, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "session-old") {
		t.Fatalf("expected stale candidate in output, got %q", out.String())
	}
	if strings.Contains(out.String(), "session-fresh") {
		t.Fatalf("fresh session must not be a candidate: %q", out.String())
	}
}

func TestCombinedSweepRunsBoth(t *testing.T) {
	staleCalled := false
	orphanCalled := false
	store := &fakeSweepStore{
		markInactive: func(_ context.Context, _ time.Time) (int64, error) {
			staleCalled = true
			return 0, nil
		},
		removeOrphaned: func(_ context.Context) (int64, error) {
			orphanCalled = true
			return 2, nil
		},
	}
	var out bytes.Buffer
	cfg := Config{Stale: true, Orphans: true, MaxIdle: 30 * time.Minute}
	if err := runWithDeps(context.Background(), cfg, store, sweepBase, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !staleCalled || !orphanCalled {
		t.Fatalf("expected both sweeps to run (stale=%t orphans=%t)", staleCalled, orphanCalled)
	}
}

func TestSweepFailureStillRunsRemaining(t *testing.T) {
	orphanCalled := false
	store := &fakeSweepStore{
		markInactive: func(_ context.Context, _ time.Time) (int64, error) {
			return 0, errors.New("disk full")
		},
		removeOrphaned: func(_ context.Context) (int64, error) {
			orphanCalled = true
			return 0, nil
		},
	}
	var errOut bytes.Buffer
	cfg := Config{Stale: true, Orphans: true, MaxIdle: 30 * time.Minute}
	err := runWithDeps(context.Background(), cfg, store, sweepBase, nil, &errOut)
	if err == nil {
		t.Fatal("expected failure to surface")
	}
	if !orphanCalled {
		t.Fatal("orphan sweep should run despite stale failure")
	}
	if !strings.Contains(errOut.String(), "disk full") {
		t.Fatalf("expected failure detail, got %q", errOut.String())
	}
}

func TestEvictionJSONReport(t *testing.T) {
	store := &fakeSweepStore{
		removeUser: func(_ context.Context, userID string, _ time.Time) (int64, error) {
			if userID != "user-9" {
				t.Fatalf("expected user-9, got %q", userID)
			}
			return 4, nil
		},
	}
	var out bytes.Buffer
	cfg := Config{EvictUser: "user-9", JSONOutput: true}
	if err := runWithDeps(context.Background(), cfg, store, sweepBase, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), `"removed":4`) {
		t.Fatalf("unexpected JSON report: %q", out.String())
	}
}

func TestPhaseResetPassesHost(t *testing.T) {
	store := &fakeSweepStore{
		forceReset: func(_ context.Context, sessionID, hostUserID string, _ time.Time) error {
			if sessionID != "session-1" || hostUserID != "host-1" {
				t.Fatalf("unexpected reset args %q/%q", sessionID, hostUserID)
			}
			return nil
		},
	}
	var out bytes.Buffer
	cfg := Config{ResetSession: "session-1", ResetHost: "host-1"}
	if err := runWithDeps(context.Background(), cfg, store, sweepBase, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Reset session session-1") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}
