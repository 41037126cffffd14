package recall

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/engine"
	"github.com/rushteam/grocerec/model"
	"github.com/rushteam/grocerec/pipeline"
	"github.com/rushteam/grocerec/pkg/logging"
	"github.com/rushteam/grocerec/pkg/utils"
	"github.com/rushteam/grocerec/rerank"
	"github.com/rushteam/grocerec/store"
)

func loadEngine(t *testing.T) *engine.Engine {
	t.Helper()
	b, err := model.Load("../model/testdata/bundle.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	e, err := engine.New(b, engine.DefaultWeights())
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return e
}

func TestBlend_MatchesRecommend(t *testing.T) {
	e := loadEngine(t)
	want, err := e.Recommend("U", "summer", 3)
	if err != nil {
		t.Fatal(err)
	}

	p := &pipeline.Pipeline{Nodes: []pipeline.Node{
		&Blend{Engine: e},
		&rerank.TopNNode{},
	}}
	items, err := p.Run(context.Background(), &core.RecommendContext{UserID: "U", Season: "summer", TopN: 3}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := core.ItemIDs(items)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pipeline = %v, Recommend = %v", got, want)
	}
	if !reflect.DeepEqual(got, []string{"E", "C", "D"}) {
		t.Errorf("pipeline = %v, want [E C D]", got)
	}

	c := items[1]
	if c.Features["item_sim"] != 0.4 || c.Features["tag_sim"] != 0.15 || c.Features["seasonal"] != 0 {
		t.Errorf("C features = %v", c.Features)
	}
	if c.Labels["recall_source"].Value != "blend" {
		t.Errorf("C labels = %v", c.Labels)
	}
}

func TestBlend_Limit(t *testing.T) {
	r := &Blend{Engine: loadEngine(t), Limit: 1}
	items, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "U", Season: "summer"})
	if err != nil {
		t.Fatal(err)
	}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"E"}) {
		t.Errorf("Recall() = %v, want [E]", got)
	}
}

func TestBlend_Errors(t *testing.T) {
	r := &Blend{Engine: loadEngine(t)}

	_, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "nobody"})
	if !core.IsNotFound(err) {
		t.Errorf("unknown user: error = %v, want NOT_FOUND", err)
	}

	p := &pipeline.Pipeline{Nodes: []pipeline.Node{r}}
	_, err = p.Run(context.Background(), &core.RecommendContext{UserID: "nobody"}, nil)
	if !core.IsNotFound(err) {
		t.Errorf("pipeline: error = %v, want NOT_FOUND", err)
	}

	if _, err := r.Recall(context.Background(), nil); !core.IsInvalidInput(err) {
		t.Errorf("nil context: error = %v, want INVALID_INPUT", err)
	}
}

func TestSeasonalHot(t *testing.T) {
	ctx := context.Background()
	b, err := model.Load("../model/testdata/bundle.yaml")
	if err != nil {
		t.Fatal(err)
	}
	mem := store.NewMemoryStore()
	defer mem.Close()
	if err := model.Publish(ctx, mem, "test", b); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	r := &SeasonalHot{Store: mem, KeyPrefix: "test", IDs: []string{"bananas"}}

	items, err := r.Recall(ctx, &core.RecommendContext{Season: "summer"})
	if err != nil {
		t.Fatal(err)
	}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"watermelon", "lemonade"}) {
		t.Fatalf("summer = %v", got)
	}
	if items[0].Score != 100 || items[0].Features["seasonal_count"] != 100 {
		t.Errorf("watermelon score = %v, features = %v", items[0].Score, items[0].Features)
	}

	r.Limit = 1
	items, _ = r.Recall(ctx, &core.RecommendContext{Season: "summer"})
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"watermelon"}) {
		t.Errorf("limit 1 = %v", got)
	}

	items, _ = r.Recall(ctx, &core.RecommendContext{Season: "spring"})
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"bananas"}) {
		t.Errorf("fallback = %v, want [bananas]", got)
	}
	if items[0].Score != 0 {
		t.Errorf("fallback score = %v", items[0].Score)
	}
}

type brokenStore struct {
	core.KeyValueStore
	err error
}

func (s brokenStore) ZRevRangeWithScores(context.Context, string, int64, int64) ([]core.ScoredMember, error) {
	return nil, s.err
}

func TestSeasonalHot_FallbackReason(t *testing.T) {
	ctx := context.Background()
	empty := store.NewMemoryStore()
	defer empty.Close()

	var buf bytes.Buffer
	logging.SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { logging.Init(logging.Config{}) })

	tests := []struct {
		name       string
		store      core.KeyValueStore
		wantReason utils.Label
		wantLog    bool
	}{
		{
			name:       "store error",
			store:      brokenStore{err: errors.New("connection refused")},
			wantReason: utils.Label{Value: "store_error", Source: "connection refused"},
			wantLog:    true,
		},
		{
			name:       "empty set",
			store:      empty,
			wantReason: utils.Label{Value: "empty", Source: "recall.seasonal_hot"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			r := &SeasonalHot{Store: tt.store, KeyPrefix: "test", IDs: []string{"bananas"}}
			items, err := r.Recall(ctx, &core.RecommendContext{Season: "summer"})
			if err != nil {
				t.Fatal(err)
			}
			if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"bananas"}) {
				t.Fatalf("Recall() = %v, want [bananas]", got)
			}
			if got := items[0].Labels["fallback_reason"]; got != tt.wantReason {
				t.Errorf("fallback_reason = %+v, want %+v", got, tt.wantReason)
			}
			logged := strings.Contains(buf.String(), "connection refused")
			if logged != tt.wantLog {
				t.Errorf("logged = %v, want %v: %q", logged, tt.wantLog, buf.String())
			}
		})
	}
}

type staticSource struct {
	name string
	ids  []string
	err  error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Recall(context.Context, *core.RecommendContext) ([]*core.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*core.Item, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, core.NewItem(id))
	}
	return out, nil
}

func TestFallback(t *testing.T) {
	e := loadEngine(t)
	hot := staticSource{name: "hot", ids: []string{"bananas", "apples"}}
	broken := staticSource{name: "broken", err: errors.New("redis down")}

	tests := []struct {
		name    string
		user    string
		sources []Source
		want    []string
		wantErr func(error) bool
	}{
		{"known user uses blend", "U", []Source{&Blend{Engine: e}, hot}, []string{"E", "C", "D"}, nil},
		{"unknown user falls through", "nobody", []Source{&Blend{Engine: e}, hot}, []string{"bananas", "apples"}, nil},
		{"empty source is skipped", "U", []Source{staticSource{name: "empty"}, hot}, []string{"bananas", "apples"}, nil},
		{"all empty keeps not found", "nobody", []Source{&Blend{Engine: e}, staticSource{name: "empty"}}, nil, core.IsNotFound},
		{"other errors stop", "nobody", []Source{broken, hot}, nil, func(err error) bool { return err != nil && !core.IsDomainError(err) }},
		{"no sources", "U", nil, []string{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Fallback{Sources: tt.sources}
			items, err := r.Process(context.Background(), &core.RecommendContext{UserID: tt.user, Season: "summer"}, nil)
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Errorf("Process() error = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if got := core.ItemIDs(items); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Process() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFallback_Label(t *testing.T) {
	r := &Fallback{Sources: []Source{staticSource{name: "empty"}, staticSource{name: "hot", ids: []string{"bananas"}}}}
	items, err := r.Recall(context.Background(), &core.RecommendContext{})
	if err != nil {
		t.Fatal(err)
	}
	if l := items[0].Labels["fallback_source"]; l.Value != "hot" || l.Source != "recall.fallback" {
		t.Errorf("fallback_source = %+v", l)
	}
}
