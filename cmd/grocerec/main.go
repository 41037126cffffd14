// Command grocerec 运行推荐 HTTP 服务，或把本地数据包发布到 Redis。
//
//	grocerec -config grocerec.yaml
//	grocerec -config grocerec.yaml -publish bundle.yaml
//	grocerec -config grocerec.yaml -export bundle.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/grocerec/config"
	"github.com/rushteam/grocerec/config/builders"
	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/engine"
	"github.com/rushteam/grocerec/model"
	"github.com/rushteam/grocerec/pipeline"
	"github.com/rushteam/grocerec/pkg/logging"
	"github.com/rushteam/grocerec/server"
	"github.com/rushteam/grocerec/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default $GROCEREC_CONFIG)")
	publish := flag.String("publish", "", "publish this bundle file to redis and exit")
	export := flag.String("export", "", "write the bundle stored in redis to this file and exit")
	flag.Parse()

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grocerec: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Log)
	logging.SetLogger(logging.With().Str("service", "grocerec").Logger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *publish != "":
		err = runPublish(ctx, cfg, *publish)
	case *export != "":
		err = runExport(ctx, cfg, *export)
	default:
		err = run(ctx, cfg)
	}
	if err != nil {
		logging.Error().Err(err).Msg("grocerec exited")
		os.Exit(1)
	}
}

func runPublish(ctx context.Context, cfg *config.AppConfig, path string) error {
	b, err := model.Load(path)
	if err != nil {
		return err
	}
	rdb, err := store.NewRedisStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	if err := model.Publish(ctx, rdb, cfg.Model.KeyPrefix, b); err != nil {
		return err
	}
	stats := b.Stats()
	logging.Info().
		Str("file", path).
		Str("redis", cfg.Redis.Addr).
		Str("key_prefix", cfg.Model.KeyPrefix).
		Int("users", stats.Users).
		Msg("bundle published")
	return nil
}

// runExport 把 Redis 中已发布的数据包导出为 YAML 文件，便于排查线上数据。
func runExport(ctx context.Context, cfg *config.AppConfig, path string) error {
	rdb, err := store.NewRedisStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	loadCtx, cancel := context.WithTimeout(ctx, cfg.DefaultLoadTimeout())
	defer cancel()
	b, err := model.NewStoreLoader(rdb, cfg.Model.KeyPrefix).Load(loadCtx)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := model.Encode(f, b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logging.Info().Str("file", path).Int("users", b.Stats().Users).Msg("bundle exported")
	return nil
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	var (
		kv     core.KeyValueStore
		source model.Source
	)
	switch cfg.Model.Source {
	case config.SourceRedis:
		rdb, err := store.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		kv = rdb
		source = model.NewStoreLoader(rdb, cfg.Model.KeyPrefix)
	default:
		source = &model.FileSource{Path: cfg.Model.Path}
	}

	b, err := server.LoadBundle(ctx, source, cfg.DefaultLoadTimeout())
	if err != nil {
		return fmt.Errorf("load bundle from %s: %w", source.Name(), err)
	}

	eng, err := engine.New(b, engine.WeightsFrom(cfg))
	if err != nil {
		return err
	}

	p, err := loadPipeline(cfg, eng, kv)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Engine:      eng,
		Pipeline:    p,
		Source:      source,
		DefaultTopN: cfg.DefaultTopN(),
		LoadTimeout: cfg.DefaultLoadTimeout(),
		RateLimit:   cfg.Server.RateLimit,
		AdminToken:  cfg.Server.AdminToken,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		srv.WatchReload(gctx, cfg.Model.ReloadInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logging.Info().Msg("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loadPipeline 在配置了 pipeline.path 时构建 Pipeline，否则返回 nil。
func loadPipeline(cfg *config.AppConfig, eng *engine.Engine, kv core.KeyValueStore) (*pipeline.Pipeline, error) {
	if cfg.Pipeline.Path == "" {
		return nil, nil
	}
	pcfg, err := pipeline.LoadConfig(cfg.Pipeline.Path)
	if err != nil {
		return nil, err
	}

	deps := builders.Deps{Engine: eng, KeyPrefix: cfg.Model.KeyPrefix}
	if kv != nil {
		deps.Store = kv
	}
	if err := builders.Install(config.Default, deps); err != nil {
		return nil, err
	}
	if err := config.ValidatePipelineConfig(pcfg); err != nil {
		return nil, err
	}
	p, err := pcfg.BuildPipeline(config.DefaultFactory())
	if err != nil {
		return nil, err
	}
	logging.Info().
		Str("pipeline", p.Name).
		Int("nodes", len(p.Nodes)).
		Strs("types", config.SupportedTypes()).
		Msg("pipeline loaded")
	return p, nil
}
