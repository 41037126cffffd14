// Package store 提供 core.Store / core.KeyValueStore 的实现。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
//	var s core.KeyValueStore = store.NewMemoryStore()
//	r, err := store.NewRedisStore(ctx, store.RedisConfig{Addr: "localhost:6379"})
package store
