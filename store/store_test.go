package store

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/grocerec/core"
)

// exerciseKeyValueStore 对任意 KeyValueStore 实现跑同一组用例。
func exerciseKeyValueStore(t *testing.T, s core.KeyValueStore, prefix string) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, prefix+"missing"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get(missing) error = %v, want not found", err)
	}

	if err := s.Set(ctx, prefix+"k", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Get(ctx, prefix+"k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get(k) = %q, %v", got, err)
	}

	if err := s.BatchSet(ctx, map[string][]byte{prefix + "a": []byte("1"), prefix + "b": []byte("2")}); err != nil {
		t.Fatalf("BatchSet() error = %v", err)
	}
	batch, err := s.BatchGet(ctx, []string{prefix + "a", prefix + "b", prefix + "nope"})
	if err != nil {
		t.Fatalf("BatchGet() error = %v", err)
	}
	if len(batch) != 2 || string(batch[prefix+"a"]) != "1" || string(batch[prefix+"b"]) != "2" {
		t.Errorf("BatchGet() = %v", batch)
	}

	hot := prefix + "hot:summer"
	_ = s.Delete(ctx, hot)
	for member, score := range map[string]float64{"watermelon": 100, "ice-cream": 80, "lemonade": 120} {
		if err := s.ZAdd(ctx, hot, score, member); err != nil {
			t.Fatalf("ZAdd() error = %v", err)
		}
	}
	members, err := s.ZRevRangeWithScores(ctx, hot, 0, -1)
	if err != nil {
		t.Fatalf("ZRevRangeWithScores() error = %v", err)
	}
	want := []core.ScoredMember{{Member: "lemonade", Score: 120}, {Member: "watermelon", Score: 100}, {Member: "ice-cream", Score: 80}}
	if !reflect.DeepEqual(members, want) {
		t.Errorf("ZRevRangeWithScores() = %v, want %v", members, want)
	}
	top, _ := s.ZRevRangeWithScores(ctx, hot, 0, 0)
	if len(top) != 1 || top[0].Member != "lemonade" {
		t.Errorf("ZRevRangeWithScores(0,0) = %v", top)
	}
	tail, _ := s.ZRevRangeWithScores(ctx, hot, -1, -1)
	if len(tail) != 1 || tail[0].Member != "ice-cream" {
		t.Errorf("ZRevRangeWithScores(-1,-1) = %v", tail)
	}
	if score, err := s.ZScore(ctx, hot, "watermelon"); err != nil || score != 100 {
		t.Errorf("ZScore() = %v, %v", score, err)
	}
	if _, err := s.ZScore(ctx, hot, "pumpkin"); !core.IsStoreNotFound(err) {
		t.Errorf("ZScore(missing) error = %v", err)
	}

	if err := s.ZReplace(ctx, hot, []core.ScoredMember{{Member: "pumpkin", Score: 5}, {Member: "watermelon", Score: 7}}); err != nil {
		t.Fatalf("ZReplace() error = %v", err)
	}
	members, _ = s.ZRevRangeWithScores(ctx, hot, 0, -1)
	if want := []core.ScoredMember{{Member: "watermelon", Score: 7}, {Member: "pumpkin", Score: 5}}; !reflect.DeepEqual(members, want) {
		t.Errorf("after ZReplace = %v, want %v", members, want)
	}
	if err := s.ZReplace(ctx, hot, nil); err != nil {
		t.Fatalf("ZReplace(nil) error = %v", err)
	}
	if members, _ := s.ZRevRangeWithScores(ctx, hot, 0, -1); len(members) != 0 {
		t.Errorf("after ZReplace(nil) = %v", members)
	}

	for _, k := range []string{prefix + "k", prefix + "a", prefix + "b", hot} {
		if err := s.Delete(ctx, k); err != nil {
			t.Fatalf("Delete(%s) error = %v", k, err)
		}
	}
	if members, _ := s.ZRevRangeWithScores(ctx, hot, 0, -1); len(members) != 0 {
		t.Errorf("ZRevRangeWithScores after Delete = %v", members)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseKeyValueStore(t, s, "test:")
}

func TestMemoryStore_TTL(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	s.mu.Lock()
	s.data["expired"] = entry{value: []byte("v"), expire: time.Now().Add(-time.Second)}
	s.mu.Unlock()

	if _, err := s.Get(ctx, "expired"); !core.IsStoreNotFound(err) {
		t.Errorf("Get(expired) error = %v, want not found", err)
	}
	batch, _ := s.BatchGet(ctx, []string{"expired"})
	if len(batch) != 0 {
		t.Errorf("BatchGet(expired) = %v", batch)
	}

	if err := s.Set(ctx, "fresh", []byte("v"), 60); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "fresh"); err != nil {
		t.Errorf("Get(fresh) error = %v", err)
	}
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

// TestRedisStore 需要真实的 Redis，设置 GROCEREC_TEST_REDIS_ADDR 后运行。
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("GROCEREC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("需要设置 GROCEREC_TEST_REDIS_ADDR 才能运行")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := NewRedisStore(ctx, RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer s.Close()
	exerciseKeyValueStore(t, s, "grocerec-test:")
}
