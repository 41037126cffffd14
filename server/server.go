// Package server 通过 HTTP 暴露推荐引擎。
//
//	GET  /healthz              存活检查与当前数据包规模
//	GET  /users                已知用户列表
//	GET  /recommend            ?user_id=&season=&top_n=
//	POST /recommend            {"user_id":"", "season":"", "top_n":5}
//	GET  /recommend/explain    各信号得分明细
//	POST /admin/reload         从数据源重新加载数据包
//	GET  /metrics              Prometheus 指标
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/engine"
	"github.com/rushteam/grocerec/model"
	"github.com/rushteam/grocerec/pipeline"
	"github.com/rushteam/grocerec/pkg/logging"
	"github.com/rushteam/grocerec/pkg/metrics"
)

// Options 是 Server 的依赖与参数。
type Options struct {
	Engine *engine.Engine

	// Pipeline 可选；设置后 /recommend 走 Pipeline，否则直接调用 Engine.Recommend
	Pipeline *pipeline.Pipeline

	// Source 可选；为 nil 时 /admin/reload 返回 NOT_SUPPORTED
	Source model.Source

	DefaultTopN int
	LoadTimeout time.Duration

	// RateLimit 是每个 IP 每分钟请求数，0 表示不限流
	RateLimit int

	// AdminToken 非空时 /admin/* 需要 Bearer Token
	AdminToken string
}

// Server 是 grocerec 的 HTTP 服务。
type Server struct {
	opts     Options
	router   chi.Router
	reloadMu sync.Mutex
}

// New 创建 Server 并注册路由。
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, core.NewDomainError("server", core.ErrorCodeInvalidInput, "server: engine is required")
	}
	if opts.DefaultTopN <= 0 {
		opts.DefaultTopN = engine.DefaultTopN
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = (&core.DefaultEngineConfig{}).DefaultLoadTimeout()
	}

	s := &Server{opts: opts}
	s.router = s.routes()
	return s, nil
}

// Handler 返回根 http.Handler。
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
		}
		r.Get("/users", s.handleUsers)
		r.Get("/recommend", s.handleRecommend)
		r.Post("/recommend", s.handleRecommend)
		r.Get("/recommend/explain", s.handleExplain)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(bearerAuth(s.opts.AdminToken))
		r.Post("/reload", s.handleReload)
	})

	return r
}

// Reload 从 Source 加载新数据包并原子替换，并发调用会被串行化。
// 加载失败时保留旧数据包。
func (s *Server) Reload(ctx context.Context) (model.Stats, error) {
	if s.opts.Source == nil {
		return model.Stats{}, core.NewDomainError("server", core.ErrorCodeNotSupported, "server: no reload source configured")
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	b, err := loadBundle(ctx, s.opts.Source, s.opts.LoadTimeout)
	if err == nil {
		_, err = s.opts.Engine.Reload(b)
	}
	return recordLoad(s.opts.Source.Name(), start, b, err)
}

// LoadBundle 加载启动时的数据包，与 Reload 一样记录指标和日志。
func LoadBundle(ctx context.Context, src model.Source, timeout time.Duration) (*model.Bundle, error) {
	start := time.Now()
	b, err := loadBundle(ctx, src, timeout)
	if _, err := recordLoad(src.Name(), start, b, err); err != nil {
		return nil, err
	}
	return b, nil
}

func loadBundle(ctx context.Context, src model.Source, timeout time.Duration) (*model.Bundle, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return src.Load(ctx)
}

func recordLoad(name string, start time.Time, b *model.Bundle, err error) (model.Stats, error) {
	took := time.Since(start)
	if err != nil {
		metrics.RecordReload(name, took, nil, err)
		logging.Error().Err(err).Str("source", name).Msg("bundle load failed")
		return model.Stats{}, err
	}

	stats := b.Stats()
	metrics.RecordReload(name, took, &stats, nil)
	logging.Info().
		Str("source", name).
		Int("users", stats.Users).
		Int("item_sim_rows", stats.ItemSimRows).
		Int("tag_sim_rows", stats.TagSimRows).
		Int("seasonal_records", stats.SeasonalRecords).
		Dur("took", took).
		Msg("bundle loaded")
	return stats, nil
}

// WatchReload 每隔 interval 调用一次 Reload，直到 ctx 结束。
func (s *Server) WatchReload(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.opts.Source == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.Reload(ctx)
		}
	}
}
