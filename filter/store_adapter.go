package filter

import (
	"context"
	"encoding/json"

	"github.com/rushteam/grocerec/core"
)

// ListStore 按 key 读取商品 ID 列表。
type ListStore interface {
	List(ctx context.Context, key string) ([]string, error)
}

// StoreAdapter 把 core.Store 适配为 ListStore。
// 列表以 JSON 字符串数组存储，例如 ["butter","eggs"]；key 不存在视为空列表。
type StoreAdapter struct {
	store core.Store
}

func NewStoreAdapter(s core.Store) *StoreAdapter {
	return &StoreAdapter{store: s}
}

func (a *StoreAdapter) List(ctx context.Context, key string) ([]string, error) {
	data, err := a.store.Get(ctx, key)
	if core.IsStoreNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, core.Errorf(core.ModuleStore, core.ErrorCodeInvalidInput, "store: %s is not a JSON string array: %v", key, err)
	}
	return ids, nil
}

// PutList 写入列表，供运营工具与测试使用。
func (a *StoreAdapter) PutList(ctx context.Context, key string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, key, data)
}
