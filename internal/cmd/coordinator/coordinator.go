// Package coordinator parses coordinator command flags and runs the session
// coordinator runtime: the store, the change notifier, and the background
// sweep loops.
package coordinator

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/invite"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/notify"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/service"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage/sqlite"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

// Config holds coordinator command configuration.
type Config struct {
	DBPath              string        `env:"TAVERN_DB_PATH"`
	NotifyDriver        string        `env:"TAVERN_NOTIFY_DRIVER" envDefault:"memory"`
	RedisAddr           string        `env:"TAVERN_REDIS_ADDR"`
	RedisPassword       string        `env:"TAVERN_REDIS_PASSWORD"`
	SweepInterval       time.Duration `env:"TAVERN_SWEEP_INTERVAL" envDefault:"5m"`
	MaxIdle             time.Duration `env:"TAVERN_SESSION_MAX_IDLE" envDefault:"30m"`
	AutoAdvanceInterval time.Duration `env:"TAVERN_AUTO_ADVANCE_INTERVAL" envDefault:"15s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "data/coordinator.db"
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to coordinator sqlite database")
	fs.StringVar(&cfg.NotifyDriver, "notify-driver", cfg.NotifyDriver, "change notifier driver (memory|redis)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address for the redis notifier driver")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "interval between cleanup sweeps")
	fs.DurationVar(&cfg.MaxIdle, "max-idle", cfg.MaxIdle, "idle threshold before sessions are marked inactive")
	fs.DurationVar(&cfg.AutoAdvanceInterval, "auto-advance-interval", cfg.AutoAdvanceInterval, "interval between auto-advance checks")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the coordinator runtime and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open coordinator store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store failed error=%v", err)
		}
	}()

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			log.Printf("close notifier failed error=%v", err)
		}
	}()

	opts, err := grantOptions()
	if err != nil {
		return err
	}
	coord := service.New(store, notifier, opts...)

	log.Printf("coordinator started db=%s notify=%s sweep=%s max_idle=%s", cfg.DBPath, cfg.NotifyDriver, cfg.SweepInterval, cfg.MaxIdle)

	sweep := time.NewTicker(cfg.SweepInterval)
	defer sweep.Stop()
	advance := time.NewTicker(cfg.AutoAdvanceInterval)
	defer advance.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("coordinator stopping")
			return nil
		case <-sweep.C:
			runSweep(ctx, coord, cfg.MaxIdle)
		case <-advance.C:
			if _, err := coord.AutoAdvanceDueSessions(ctx); err != nil {
				log.Printf("auto advance failed error=%v", err)
			}
		}
	}
}

func runSweep(ctx context.Context, coord *service.Coordinator, maxIdle time.Duration) {
	if marked, err := coord.MarkStaleSessions(ctx, maxIdle); err != nil {
		log.Printf("stale sweep failed error=%v", err)
	} else if marked > 0 {
		log.Printf("stale sweep marked=%d max_idle=%s", marked, maxIdle)
	}
	if removed, err := coord.PurgeOrphanedSessions(ctx); err != nil {
		log.Printf("orphan sweep failed error=%v", err)
	} else if removed > 0 {
		log.Printf("orphan sweep removed=%d", removed)
	}
}

func buildNotifier(cfg Config) (notify.Notifier, error) {
	driver := notify.Driver(cfg.NotifyDriver)
	if driver != notify.DriverRedis {
		return notify.New(driver)
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("TAVERN_REDIS_ADDR is required for the redis notifier driver")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return notify.New(driver, notify.WithRedisClient(client))
}

// grantOptions wires join grant signing and verification when the key
// material is present in the environment. Either side may be configured
// alone: verifier-only nodes admit grant holders, signer-only nodes mint
// grants for another verifier.
func grantOptions() ([]service.Option, error) {
	var opts []service.Option
	if os.Getenv("TAVERN_JOIN_GRANT_PUBLIC_KEY") != "" {
		verifier, err := invite.LoadVerifierConfigFromEnv(nil)
		if err != nil {
			return nil, fmt.Errorf("load join grant verifier: %w", err)
		}
		opts = append(opts, service.WithJoinGrantVerifier(verifier))
	}
	if os.Getenv("TAVERN_JOIN_GRANT_PRIVATE_KEY") != "" {
		signer, err := invite.LoadSignerConfigFromEnv(nil)
		if err != nil {
			return nil, fmt.Errorf("load join grant signer: %w", err)
		}
		opts = append(opts, service.WithJoinGrantSigner(signer))
	}
	return opts, nil
}
