// Package builder wires the application from its configuration.
package builder

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Shogi-bot/internal/config"
	"github.com/park285/Cheese-Shogi-bot/internal/engine"
	"github.com/park285/Cheese-Shogi-bot/internal/engine/usi"
	"github.com/park285/Cheese-Shogi-bot/internal/game"
	"github.com/park285/Cheese-Shogi-bot/internal/gamestore"
	"github.com/park285/Cheese-Shogi-bot/internal/llmfast"
	"github.com/park285/Cheese-Shogi-bot/internal/msgcat"
	"github.com/park285/Cheese-Shogi-bot/internal/opponent"
	"github.com/park285/Cheese-Shogi-bot/internal/prefs"
	"github.com/park285/Cheese-Shogi-bot/internal/record"
	"github.com/park285/Cheese-Shogi-bot/internal/server"
)

type Deps struct {
	Server  *server.Server
	Router  *opponent.Router
	Catalog *msgcat.Catalog
	Redis   *redis.Client
	Repo    *record.Repository
	Engine  *engine.Engine
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}
	ok := false
	defer func() {
		if !ok {
			_ = d.Close()
		}
	}()

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Catalog = cat

	ropts, err := parseRedisURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	d.Redis = redis.NewClient(ropts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := record.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		d.Repo = repo
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	} else {
		logger.Warn("archive_disabled", zap.String("reason", "DATABASE_URL not set"))
	}

	router, eng, err := buildRouter(cfg, cat, logger)
	if err != nil {
		return nil, err
	}
	d.Router, d.Engine = router, eng

	var archive server.Archiver
	if d.Repo != nil {
		archive = d.Repo
	}
	srv, err := server.New(server.Deps{
		Supplier:  router,
		Prefs:     prefs.NewStore(d.Redis, cfg.DefaultStrategy, prefs.WithTTL(cfg.PrefsTTL), prefs.WithValidator(router.Supports)),
		Snapshots: gamestore.NewStore(d.Redis, cfg.SessionTTL),
		Archive:   archive,
		Texts:     cat,
		Health:    func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() },
		Logger:    logger,
	}, server.Config{
		DefaultMode:   game.Mode(cfg.DefaultMode),
		OpponentDelay: cfg.OpponentDelay,
		GameTexts:     GameTexts(cat),
	})
	if err != nil {
		return nil, err
	}
	d.Server = srv
	ok = true
	return d, nil
}

// buildRouter registers every strategy the configuration can serve. The
// random strategy is always available and is the fallback.
func buildRouter(cfg *config.AppConfig, cat *msgcat.Catalog, logger *zap.Logger) (*opponent.Router, *engine.Engine, error) {
	router := opponent.NewRouter(opponent.WithLogger(logger))
	router.Register(opponent.KindRandom, opponent.NewRandom(time.Now().UnixNano()))

	var eng *engine.Engine
	if strings.TrimSpace(cfg.USIEnginePath) != "" {
		if _, err := engine.GetPreset(cfg.USIDefaultPreset); err != nil {
			return nil, nil, fmt.Errorf("USI_DEFAULT_PRESET: %w", err)
		}
		pool, err := usi.NewPool(usi.PoolConfig{BinaryPath: cfg.USIEnginePath, PerPresetCapacity: cfg.USIPoolCapacity})
		if err != nil {
			return nil, nil, fmt.Errorf("init engine: %w", err)
		}
		eng = engine.NewEngineWithPool(pool)
		router.Register(opponent.KindEngine, opponent.NewEngineSupplier(eng, cfg.USIDefaultPreset,
			opponent.WithEngineTexts(cat), opponent.WithEngineLogger(logger)))
	}

	if strings.TrimSpace(cfg.LLMBaseURL) != "" {
		client := llmfast.NewClient(cfg.LLMBaseURL,
			llmfast.WithTimeout(cfg.LLMTimeout),
			llmfast.WithAPIKey(cfg.LLMAPIKey),
		)
		router.Register(opponent.KindLLM, opponent.NewLLMSupplier(client, cfg.LLMDefaultModel,
			opponent.WithLLMTexts(cat), opponent.WithLLMLogger(logger)))
	}

	if !router.Supports(cfg.DefaultStrategy) {
		if eng != nil {
			_ = eng.Close()
		}
		return nil, nil, fmt.Errorf("default strategy %q has no registered opponent", cfg.DefaultStrategy)
	}
	return router, eng, nil
}

// GameTexts reads the game messages from cat. Missing keys keep the
// built-in texts.
func GameTexts(cat *msgcat.Catalog) game.Texts {
	return game.Texts{
		Thinking:     cat.Text("game.thinking", ""),
		MissingDrop:  cat.Text("game.missing_drop", ""),
		EmptyReply:   cat.Text("game.empty_reply", ""),
		ForeignPiece: cat.Text("game.foreign_piece", ""),
	}
}

func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.Engine != nil {
		errs = append(errs, d.Engine.Close())
	}
	if d.Repo != nil {
		errs = append(errs, d.Repo.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}
	port := u.Port()
	if port == "" {
		port = "6379"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, err
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{
		Addr:     u.Hostname() + ":" + port,
		Username: u.User.Username(),
		Password: pass,
		DB:       db,
	}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{ServerName: u.Hostname(), MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
