// Package maintenance implements the offline administration command for the
// session coordinator: stale-session sweeps, orphan purges, user eviction,
// and forced phase resets for stuck sessions.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage/sqlite"
	"github.com/caarlos0/env/v11"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath       string
	Timeout      time.Duration
	Stale        bool
	MaxIdle      time.Duration
	Orphans      bool
	EvictUser    string
	ResetSession string
	ResetHost    string
	DryRun       bool
	JSONOutput   bool
}

type envConfig struct {
	DBPath  string        `env:"TAVERN_DB_PATH"`
	Timeout time.Duration `env:"TAVERN_MAINTENANCE_TIMEOUT" envDefault:"5m"`
	MaxIdle time.Duration `env:"TAVERN_SESSION_MAX_IDLE" envDefault:"30m"`
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		DBPath:  envCfg.DBPath,
		Timeout: envCfg.Timeout,
		MaxIdle: envCfg.MaxIdle,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "coordinator.db")
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to coordinator sqlite database (default: TAVERN_DB_PATH or data/coordinator.db)")
	fs.BoolVar(&cfg.Stale, "stale", false, "deactivate sessions idle longer than -max-idle")
	fs.DurationVar(&cfg.MaxIdle, "max-idle", cfg.MaxIdle, "idle threshold for the stale sweep")
	fs.BoolVar(&cfg.Orphans, "orphans", false, "deactivate sessions with zero player members")
	fs.StringVar(&cfg.EvictUser, "evict-user", "", "remove this user from every session they joined")
	fs.StringVar(&cfg.ResetSession, "reset-session", "", "session ID to force back to the waiting phase")
	fs.StringVar(&cfg.ResetHost, "reset-host", "", "host user ID authorizing the phase reset")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "list stale sweep candidates without deactivating them")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open coordinator store: %w", err)
	}

	return runWithDeps(ctx, cfg, store, time.Now().UTC(), out, errOut)
}

func validateConfig(cfg Config) error {
	if !cfg.Stale && !cfg.Orphans && cfg.EvictUser == "" && cfg.ResetSession == "" {
		return errors.New("one of -stale, -orphans, -evict-user, or -reset-session is required")
	}
	if cfg.ResetSession != "" {
		if cfg.Stale || cfg.Orphans || cfg.EvictUser != "" {
			return errors.New("-reset-session cannot be combined with sweep flags")
		}
		if strings.TrimSpace(cfg.ResetHost) == "" {
			return errors.New("-reset-host is required with -reset-session")
		}
	}
	if cfg.EvictUser != "" && (cfg.Stale || cfg.Orphans) {
		return errors.New("-evict-user cannot be combined with sweep flags")
	}
	if cfg.DryRun && !cfg.Stale {
		return errors.New("-dry-run is only supported with -stale")
	}
	if cfg.Stale && cfg.MaxIdle <= 0 {
		return errors.New("-max-idle must be > 0")
	}
	return nil
}

// runWithDeps contains the core maintenance logic with injectable
// dependencies. It owns the lifecycle of the store (closing it on return).
func runWithDeps(ctx context.Context, cfg Config, store sweepStore, now time.Time, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close coordinator store: %v\n", err)
		}
	}()

	if cfg.ResetSession != "" {
		return runPhaseReset(ctx, store, cfg.ResetSession, cfg.ResetHost, now, cfg.JSONOutput, out)
	}
	if cfg.EvictUser != "" {
		return runEviction(ctx, store, cfg.EvictUser, now, cfg.JSONOutput, out)
	}

	failed := false
	if cfg.Stale {
		cutoff := now.Add(-cfg.MaxIdle)
		if err := runStaleSweep(ctx, store, cutoff, cfg.DryRun, cfg.JSONOutput, out); err != nil {
			fmt.Fprintf(errOut, "Error: stale sweep: %v\n", err)
			failed = true
		}
	}
	if cfg.Orphans {
		if err := runOrphanSweep(ctx, store, cfg.JSONOutput, out); err != nil {
			fmt.Fprintf(errOut, "Error: orphan sweep: %v\n", err)
			failed = true
		}
	}
	if failed {
		return errors.New("maintenance failed")
	}
	return nil
}

type staleReport struct {
	Mode       string    `json:"mode"`
	Cutoff     time.Time `json:"cutoff"`
	DryRun     bool      `json:"dry_run,omitempty"`
	Marked     int64     `json:"marked"`
	Candidates []string  `json:"candidates,omitempty"`
}

type orphanReport struct {
	Mode    string `json:"mode"`
	Removed int64  `json:"removed"`
}

type evictionReport struct {
	Mode    string `json:"mode"`
	UserID  string `json:"user_id"`
	Removed int64  `json:"removed"`
}

type resetReport struct {
	Mode      string `json:"mode"`
	SessionID string `json:"session_id"`
}

func runStaleSweep(ctx context.Context, store sweepStore, cutoff time.Time, dryRun, jsonOutput bool, out io.Writer) error {
	report := staleReport{Mode: "stale", Cutoff: cutoff, DryRun: dryRun}

	if dryRun {
		sessions, err := store.ListActiveSessions(ctx)
		if err != nil {
			return fmt.Errorf("list active sessions: %w", err)
		}
		for _, sess := range sessions {
			if sess.LastActivity.Before(cutoff) {
				report.Candidates = append(report.Candidates, sess.ID)
			}
		}
		report.Marked = int64(len(report.Candidates))
	} else {
		marked, err := store.MarkInactiveSessions(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("mark inactive sessions: %w", err)
		}
		report.Marked = marked
	}

	if jsonOutput {
		return outputJSON(out, report)
	}
	if dryRun {
		fmt.Fprintf(out, "Stale sweep (dry run): %d sessions idle since %s\n", report.Marked, cutoff.Format(time.RFC3339))
		for _, id := range report.Candidates {
			fmt.Fprintf(out, "- %s\n", id)
		}
		return nil
	}
	fmt.Fprintf(out, "Stale sweep: deactivated %d sessions idle since %s\n", report.Marked, cutoff.Format(time.RFC3339))
	return nil
}

func runOrphanSweep(ctx context.Context, store sweepStore, jsonOutput bool, out io.Writer) error {
	removed, err := store.RemoveOrphanedSessions(ctx)
	if err != nil {
		return fmt.Errorf("remove orphaned sessions: %w", err)
	}
	if jsonOutput {
		return outputJSON(out, orphanReport{Mode: "orphans", Removed: removed})
	}
	fmt.Fprintf(out, "Orphan sweep: deactivated %d sessions with no players\n", removed)
	return nil
}

func runEviction(ctx context.Context, store sweepStore, userID string, now time.Time, jsonOutput bool, out io.Writer) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("user id is required")
	}
	removed, err := store.RemoveUserFromAllSessions(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("evict user: %w", err)
	}
	if jsonOutput {
		return outputJSON(out, evictionReport{Mode: "evict", UserID: userID, Removed: removed})
	}
	fmt.Fprintf(out, "Evicted user %s from %d sessions\n", userID, removed)
	return nil
}

func runPhaseReset(ctx context.Context, store sweepStore, sessionID, hostUserID string, now time.Time, jsonOutput bool, out io.Writer) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if err := store.ForceResetPhase(ctx, sessionID, strings.TrimSpace(hostUserID), now); err != nil {
		return fmt.Errorf("reset phase: %w", err)
	}
	if jsonOutput {
		return outputJSON(out, resetReport{Mode: "reset", SessionID: sessionID})
	}
	fmt.Fprintf(out, "Reset session %s to the waiting phase\n", sessionID)
	return nil
}

func outputJSON(out io.Writer, report any) error {
	encoded, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(out, string(encoded))
	return nil
}
