package core

import "context"

// Store 是存储的领域接口。
//
// 定义在领域层（core），由基础设施层（store）实现：
//   - store.MemoryStore 实现此接口
//   - store.RedisStore 实现此接口
//
// 使用场景：数据包发布/加载（model.Publish / model.StoreLoader）、缺货黑名单、用户屏蔽列表。
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取，不存在的 key 不出现在结果中
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error

	// Close 关闭连接/释放资源
	Close() error
}

// KeyValueStore 在 Store 之上增加有序集合操作，用于季节热门榜。
type KeyValueStore interface {
	Store

	// ZAdd 写入有序集合成员，已存在则覆盖分数
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZReplace 原子地用 members 替换整个有序集合，读者不会看到空集合或部分写入的中间状态；
	// members 为空时删除该 key
	ZReplace(ctx context.Context, key string, members []ScoredMember) error

	// ZRevRangeWithScores 按分数降序返回 [start, stop] 区间的成员及分数，
	// 下标语义与 Redis 一致（-1 表示最后一个）
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// ZScore 返回成员分数，成员不存在时返回 ErrStoreNotFound
	ZScore(ctx context.Context, key string, member string) (float64, error)
}

// ScoredMember 是有序集合中的一个成员。
type ScoredMember struct {
	Member string
	Score  float64
}

// ErrStoreNotFound 表示 key 或成员不存在。
var ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

// IsStoreNotFound 检查错误是否为 store 模块的 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotFound
}
