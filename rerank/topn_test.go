package rerank

import (
	"context"
	"testing"

	"github.com/rushteam/grocerec/core"
)

func TestTopNNode(t *testing.T) {
	in := make([]*core.Item, 0, 8)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		in = append(in, core.NewItem(id))
	}

	tests := []struct {
		name string
		n    int
		rctx *core.RecommendContext
		want int
	}{
		{"node N wins", 2, &core.RecommendContext{TopN: 4}, 2},
		{"context TopN", 0, &core.RecommendContext{TopN: 3}, 3},
		{"default", 0, &core.RecommendContext{}, 5},
		{"nil context", 0, nil, 5},
		{"more than available", 20, nil, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := (&TopNNode{N: tt.n}).Process(context.Background(), tt.rctx, in)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if len(out) != tt.want {
				t.Fatalf("len = %d, want %d", len(out), tt.want)
			}
			for i := range out {
				if out[i] != in[i] {
					t.Errorf("out[%d] = %s, want %s", i, out[i].ID, in[i].ID)
				}
			}
		})
	}
}

func TestTopNNode_NegativeTopN(t *testing.T) {
	_, err := (&TopNNode{}).Process(context.Background(), &core.RecommendContext{TopN: -1}, nil)
	if !core.IsInvalidInput(err) {
		t.Errorf("Process() error = %v, want INVALID_INPUT", err)
	}
}
