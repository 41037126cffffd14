package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/engine"
	"github.com/rushteam/grocerec/filter"
	"github.com/rushteam/grocerec/model"
	"github.com/rushteam/grocerec/pipeline"
	"github.com/rushteam/grocerec/pkg/metrics"
	"github.com/rushteam/grocerec/recall"
	"github.com/rushteam/grocerec/rerank"
	"github.com/rushteam/grocerec/store"
)

func newTestServer(t *testing.T, mutate func(*Options)) (*Server, *engine.Engine) {
	t.Helper()
	b, err := model.Load("../model/testdata/bundle.json")
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(b, engine.DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{
		Engine: eng,
		Source: &model.FileSource{Path: "../model/testdata/bundle.yaml"},
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, eng
}

func do(t *testing.T, s *Server, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRecommend(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   []string
	}{
		{"get", http.MethodGet, "/recommend?user_id=U&season=summer&top_n=3", "", []string{"E", "C", "D"}},
		{"get default top_n", http.MethodGet, "/recommend?user_id=U&season=summer", "", []string{"E", "C", "D"}},
		{"get top_n 1", http.MethodGet, "/recommend?user_id=U&season=summer&top_n=1", "", []string{"E"}},
		{"no season match", http.MethodGet, "/recommend?user_id=U&season=winter", "", []string{"C", "D"}},
		{"post", http.MethodPost, "/recommend", `{"user_id":"U","season":"summer","top_n":2}`, []string{"E", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.target, tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			resp := decode[RecommendResponse](t, rec)
			if !reflect.DeepEqual(resp.Items, tt.want) {
				t.Errorf("items = %v, want %v", resp.Items, tt.want)
			}
			if resp.UserID != "U" {
				t.Errorf("user_id = %q", resp.UserID)
			}
		})
	}
}

func TestRecommend_Errors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"unknown user", http.MethodGet, "/recommend?user_id=nobody", "", http.StatusNotFound, "NOT_FOUND"},
		{"zero top_n", http.MethodGet, "/recommend?user_id=U&top_n=0", "", http.StatusBadRequest, "INVALID_INPUT"},
		{"negative top_n", http.MethodPost, "/recommend", `{"user_id":"U","top_n":-1}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"non-integer top_n", http.MethodGet, "/recommend?user_id=U&top_n=abc", "", http.StatusBadRequest, "INVALID_INPUT"},
		{"missing user_id", http.MethodGet, "/recommend", "", http.StatusBadRequest, "INVALID_INPUT"},
		{"bad json", http.MethodPost, "/recommend", `{"user_id":`, http.StatusBadRequest, "INVALID_INPUT"},
		{"explain unknown user", http.MethodGet, "/recommend/explain?user_id=nobody", "", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.status, rec.Body.String())
			}
			if body := decode[ErrorBody](t, rec); body.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.code)
			}
		})
	}
}

func TestExplain(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/recommend/explain?user_id=U&season=summer&top_n=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[ExplainResponse](t, rec)
	if len(resp.Items) != 2 || resp.Items[0].ItemID != "E" || resp.Items[1].ItemID != "C" {
		t.Fatalf("items = %+v", resp.Items)
	}
	if resp.Items[0].Seasonal != 1 || resp.Items[1].ItemSimilarity != 0.4 || resp.Items[1].TagSimilarity != 0.15 {
		t.Errorf("breakdown = %+v", resp.Items)
	}
	if resp.Weights != engine.DefaultWeights() {
		t.Errorf("weights = %+v", resp.Weights)
	}
}

func TestUsersAndHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/users", "")
	users := decode[map[string][]string](t, rec)
	if !reflect.DeepEqual(users["users"], []string{"U"}) {
		t.Errorf("users = %v", users)
	}

	rec = do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	health := decode[struct {
		Status string `json:"status"`
		Users  int    `json:"users"`
	}](t, rec)
	if health.Status != "ok" || health.Users != 1 {
		t.Errorf("healthz = %+v", health)
	}

	rec = do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "grocerec_") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestReload(t *testing.T) {
	s, eng := newTestServer(t, func(o *Options) { o.AdminToken = "secret" })

	if rec := do(t, s, http.MethodPost, "/admin/reload", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/admin/reload", "", "Authorization", "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d", rec.Code)
	}

	rec := do(t, s, http.MethodPost, "/admin/reload", "", "Authorization", "Bearer secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := eng.Users(); !reflect.DeepEqual(got, []string{"u1", "u2", "u3"}) {
		t.Errorf("users after reload = %v", got)
	}
	if rec := do(t, s, http.MethodGet, "/recommend?user_id=U", ""); rec.Code != http.StatusNotFound {
		t.Errorf("old user after reload: status = %d", rec.Code)
	}
}

func TestReload_FailureKeepsBundle(t *testing.T) {
	s, eng := newTestServer(t, func(o *Options) {
		o.Source = &model.FileSource{Path: "../model/testdata/missing.yaml"}
	})
	before := eng.Bundle()

	rec := do(t, s, http.MethodPost, "/admin/reload", "")
	if rec.Code == http.StatusOK {
		t.Fatalf("reload of missing file should fail, body = %s", rec.Body.String())
	}
	if eng.Bundle() != before {
		t.Error("failed reload replaced the bundle")
	}

	s, _ = newTestServer(t, func(o *Options) { o.Source = nil })
	if rec := do(t, s, http.MethodPost, "/admin/reload", ""); rec.Code != http.StatusNotImplemented {
		t.Errorf("no source: status = %d", rec.Code)
	}
	if _, err := s.Reload(context.Background()); !core.IsNotSupported(err) {
		t.Errorf("no source: Reload() error = %v, want NOT_SUPPORTED", err)
	}
}

func TestLoadBundle_RecordsMetrics(t *testing.T) {
	metrics.BundleUsers.Set(0)
	metrics.BundleSeasonalRecords.Set(0)

	src := &model.FileSource{Path: "../model/testdata/bundle.json"}
	b, err := LoadBundle(context.Background(), src, time.Second)
	if err != nil {
		t.Fatalf("LoadBundle() error = %v", err)
	}
	if b.Stats().Users != 1 {
		t.Errorf("users = %d", b.Stats().Users)
	}
	if got := testutil.ToFloat64(metrics.BundleUsers); got != 1 {
		t.Errorf("bundle users gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.BundleSeasonalRecords); got != 1 {
		t.Errorf("seasonal records gauge = %v, want 1", got)
	}

	missing := &model.FileSource{Path: "../model/testdata/missing.yaml"}
	failed := testutil.ToFloat64(metrics.BundleReloads.WithLabelValues(missing.Name(), metrics.OutcomeError))
	if _, err := LoadBundle(context.Background(), missing, time.Second); err == nil {
		t.Fatal("LoadBundle(missing) expected error")
	}
	if got := testutil.ToFloat64(metrics.BundleReloads.WithLabelValues(missing.Name(), metrics.OutcomeError)); got != failed+1 {
		t.Errorf("failed loads = %v, want %v", got, failed+1)
	}
	if got := testutil.ToFloat64(metrics.BundleUsers); got != 1 {
		t.Errorf("failed load changed bundle users gauge to %v", got)
	}
}

func TestReload_InconsistentStoreBundle(t *testing.T) {
	mem := store.NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })
	_ = mem.Set(context.Background(), "grocerec:index:users", []byte(`["U"]`))

	s, eng := newTestServer(t, func(o *Options) { o.Source = model.NewStoreLoader(mem, "") })
	before := eng.Bundle()

	rec := do(t, s, http.MethodPost, "/admin/reload", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
	if eng.Bundle() != before {
		t.Error("failed reload replaced the bundle")
	}
}

func TestRecommend_Pipeline(t *testing.T) {
	s, _ := newTestServer(t, func(o *Options) {
		o.Pipeline = &pipeline.Pipeline{Nodes: []pipeline.Node{
			&recall.Blend{Engine: o.Engine},
			&rerank.TopNNode{},
		}}
	})

	rec := do(t, s, http.MethodGet, "/recommend?user_id=U&season=summer&top_n=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp := decode[RecommendResponse](t, rec); !reflect.DeepEqual(resp.Items, []string{"E", "C"}) {
		t.Errorf("items = %v", resp.Items)
	}

	for target, status := range map[string]int{
		"/recommend?user_id=nobody":     http.StatusNotFound,
		"/recommend?user_id=U&top_n=0":  http.StatusBadRequest,
		"/recommend?user_id=U&top_n=-2": http.StatusBadRequest,
	} {
		if rec := do(t, s, http.MethodGet, target, ""); rec.Code != status {
			t.Errorf("%s: status = %d, want %d", target, rec.Code, status)
		}
	}
}

func TestRecommend_PerStoreBlacklist(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })
	lists := filter.NewStoreAdapter(mem)
	if err := lists.PutList(ctx, "oos:s1", []string{"E"}); err != nil {
		t.Fatal(err)
	}

	s, _ := newTestServer(t, func(o *Options) {
		o.Pipeline = &pipeline.Pipeline{Nodes: []pipeline.Node{
			&recall.Blend{Engine: o.Engine},
			&filter.FilterNode{Filters: []filter.Filter{filter.NewBlacklistFilter(nil, lists, "oos:{store_id}")}},
			&rerank.TopNNode{},
		}}
	})

	tests := []struct {
		target string
		want   []string
	}{
		{"/recommend?user_id=U&season=summer&store_id=s1", []string{"C", "D"}},
		{"/recommend?user_id=U&season=summer&store_id=s2", []string{"E", "C", "D"}},
		{"/recommend?user_id=U&season=summer&store_id=%7Bstore_id%7D", []string{"E", "C", "D"}},
	}
	for _, tt := range tests {
		done := make(chan *httptest.ResponseRecorder, 1)
		go func() { done <- do(t, s, http.MethodGet, tt.target, "") }()
		select {
		case rec := <-done:
			if rec.Code != http.StatusOK {
				t.Fatalf("%s: status = %d, body = %s", tt.target, rec.Code, rec.Body.String())
			}
			if resp := decode[RecommendResponse](t, rec); !reflect.DeepEqual(resp.Items, tt.want) {
				t.Errorf("%s: items = %v, want %v", tt.target, resp.Items, tt.want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: request did not finish", tt.target)
		}
	}
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, func(o *Options) { o.RateLimit = 2 })
	var last int
	for i := 0; i < 3; i++ {
		last = do(t, s, http.MethodGet, "/users", "").Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}
