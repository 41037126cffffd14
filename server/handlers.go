package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/engine"
	"github.com/rushteam/grocerec/pkg/metrics"
)

// RecommendRequest 是 /recommend 的请求参数。TopN 为 nil 时使用默认值。
type RecommendRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Season string `json:"season"`
	TopN   *int   `json:"top_n"`
}

// RecommendResponse 是 /recommend 的响应。
type RecommendResponse struct {
	UserID string   `json:"user_id"`
	Season string   `json:"season"`
	Items  []string `json:"items"`
}

// ExplainResponse 是 /recommend/explain 的响应。
type ExplainResponse struct {
	UserID  string          `json:"user_id"`
	Season  string          `json:"season"`
	Weights engine.Weights  `json:"weights"`
	Items   []engine.Scored `json:"items"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.opts.Engine.Bundle().Stats()
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"users":  stats.Users,
		"bundle": stats,
	})
}

func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"users": s.opts.Engine.Users()})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, err := s.parseRequest(r)
	if err != nil {
		s.fail(w, r, "recommend", start, err)
		return
	}

	var items []string
	if s.opts.Pipeline != nil {
		items, err = s.runPipeline(r, req)
	} else {
		items, err = s.opts.Engine.Recommend(req.UserID, req.Season, *req.TopN)
	}
	if err != nil {
		s.fail(w, r, "recommend", start, err)
		return
	}

	metrics.RecordRecommend("recommend", metrics.OutcomeOK, time.Since(start), len(items))
	respondJSON(w, http.StatusOK, RecommendResponse{UserID: req.UserID, Season: req.Season, Items: items})
}

func (s *Server) runPipeline(r *http.Request, req *RecommendRequest) ([]string, error) {
	if *req.TopN <= 0 {
		return nil, core.Errorf(core.ModuleEngine, core.ErrorCodeInvalidInput,
			"engine: topN must be positive, got %d", *req.TopN)
	}
	rctx := &core.RecommendContext{
		UserID: req.UserID,
		Season: req.Season,
		TopN:   *req.TopN,
		Params: map[string]any{},
	}
	for k, v := range r.URL.Query() {
		if len(v) > 0 && k != "user_id" && k != "season" && k != "top_n" {
			rctx.Params[k] = v[0]
		}
	}
	out, err := s.opts.Pipeline.Run(s.opts.Engine.Pin(r.Context()), rctx, nil)
	if err != nil {
		return nil, err
	}
	ids := core.ItemIDs(out)
	if len(ids) > *req.TopN {
		ids = ids[:*req.TopN]
	}
	return ids, nil
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, err := s.parseRequest(r)
	if err != nil {
		s.fail(w, r, "explain", start, err)
		return
	}
	if *req.TopN <= 0 {
		s.fail(w, r, "explain", start, core.Errorf(core.ModuleEngine, core.ErrorCodeInvalidInput,
			"engine: topN must be positive, got %d", *req.TopN))
		return
	}

	scored, err := s.opts.Engine.Score(req.UserID, req.Season)
	if err != nil {
		s.fail(w, r, "explain", start, err)
		return
	}
	if len(scored) > *req.TopN {
		scored = scored[:*req.TopN]
	}

	metrics.RecordRecommend("explain", metrics.OutcomeOK, time.Since(start), len(scored))
	respondJSON(w, http.StatusOK, ExplainResponse{
		UserID:  req.UserID,
		Season:  req.Season,
		Weights: s.opts.Engine.Weights(),
		Items:   scored,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Reload(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "bundle": stats})
}

// parseRequest 从 query（GET）或 JSON body（POST）读取参数。
func (s *Server) parseRequest(r *http.Request) (*RecommendRequest, error) {
	req := &RecommendRequest{}
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			return nil, core.Errorf("server", core.ErrorCodeInvalidInput, "read body: %v", err)
		}
		if err := json.Unmarshal(body, req); err != nil {
			return nil, core.Errorf("server", core.ErrorCodeInvalidInput, "invalid json body: %v", err)
		}
	} else {
		q := r.URL.Query()
		req.UserID = q.Get("user_id")
		req.Season = q.Get("season")
		if v := q.Get("top_n"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, core.Errorf("server", core.ErrorCodeInvalidInput, "top_n must be an integer, got %q", v)
			}
			req.TopN = &n
		}
	}

	if err := validate.Struct(req); err != nil {
		return nil, core.Errorf("server", core.ErrorCodeInvalidInput, "invalid request: %v", err)
	}
	if req.TopN == nil {
		n := s.opts.DefaultTopN
		req.TopN = &n
	}
	return req, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, endpoint string, start time.Time, err error) {
	metrics.RecordRecommend(endpoint, outcome(err), time.Since(start), 0)
	respondError(w, r, err)
}
