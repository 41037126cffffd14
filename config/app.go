// Package config 负责服务配置加载与 Pipeline Node 注册表。
//
// 服务配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，后者覆盖前者。
// 环境变量以 GROCEREC_ 为前缀，路径中的 "." 换成 "_"，例如：
//
//	GROCEREC_SERVER_ADDR=:9090
//	GROCEREC_MODEL_SOURCE=redis
//	GROCEREC_WEIGHTS_SEASONAL=0.02
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/engine"
	"github.com/rushteam/grocerec/pkg/logging"
	"github.com/rushteam/grocerec/store"
)

const (
	// EnvPrefix 是环境变量前缀。
	EnvPrefix = "GROCEREC_"

	// ConfigPathEnvVar 在未显式传入路径时指定配置文件。
	ConfigPathEnvVar = "GROCEREC_CONFIG"
)

// 数据包来源
const (
	SourceFile  = "file"
	SourceRedis = "redis"
)

// AppConfig 是 grocerec 服务的完整配置。
type AppConfig struct {
	Server   ServerConfig      `koanf:"server"`
	Model    ModelConfig       `koanf:"model"`
	Redis    store.RedisConfig `koanf:"redis"`
	Weights  engine.Weights    `koanf:"weights"`
	TopN     int               `koanf:"top_n" validate:"gt=0"`
	Pipeline PipelineConfig    `koanf:"pipeline"`
	Log      logging.Config    `koanf:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`

	// RateLimit 是每个客户端 IP 每分钟的请求上限，0 表示不限流
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`

	// AdminToken 非空时 /admin/* 需要 Authorization: Bearer <token>
	AdminToken string `koanf:"admin_token"`
}

type ModelConfig struct {
	Source string `koanf:"source" validate:"oneof=file redis"`

	// Path 是 file 来源的 YAML/JSON 数据包路径
	Path string `koanf:"path" validate:"required_if=Source file"`

	// KeyPrefix 是 redis 来源的 key 前缀
	KeyPrefix string `koanf:"key_prefix"`

	LoadTimeout time.Duration `koanf:"load_timeout" validate:"gt=0"`

	// ReloadInterval > 0 时后台定期重新加载数据包
	ReloadInterval time.Duration `koanf:"reload_interval" validate:"gte=0"`
}

type PipelineConfig struct {
	// Path 为空时 /recommend 直接调用引擎
	Path string `koanf:"path"`
}

// DefaultAppConfig 返回默认配置。
func DefaultAppConfig() *AppConfig {
	defaults := &core.DefaultEngineConfig{}
	return &AppConfig{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Model: ModelConfig{
			Source:      SourceFile,
			Path:        "bundle.yaml",
			KeyPrefix:   "grocerec",
			LoadTimeout: defaults.DefaultLoadTimeout(),
		},
		Redis:   store.RedisConfig{Addr: "127.0.0.1:6379"},
		Weights: engine.WeightsFrom(defaults),
		TopN:    defaults.DefaultTopN(),
		Log:     logging.Config{Level: "info", Format: "json"},
	}
}

// LoadAppConfig 加载配置。path 为空时读取 GROCEREC_CONFIG；两者都为空则只用默认值与环境变量。
func LoadAppConfig(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultAppConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	known := make(map[string]string)
	for _, key := range k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform(known)), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &AppConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform 把 GROCEREC_MODEL_KEY_PREFIX 映射到 model.key_prefix。
// 只接受已知的配置项，未知变量返回空字符串被忽略。
func envTransform(known map[string]string) func(string) string {
	return func(s string) string {
		if s == ConfigPathEnvVar {
			return ""
		}
		return known[strings.ToLower(strings.TrimPrefix(s, EnvPrefix))]
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验配置项取值。
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return core.Errorf("config", core.ErrorCodeInvalidInput, "config: %v", err)
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.Model.Source == SourceRedis && c.Redis.Addr == "" {
		return core.Errorf("config", core.ErrorCodeInvalidInput, "config: redis.addr is required when model.source is redis")
	}
	return nil
}

// AppConfig 实现 core.EngineConfig，引擎权重与默认 topN 均来自配置。
var _ core.EngineConfig = (*AppConfig)(nil)

func (c *AppConfig) DefaultTopN() int                     { return c.TopN }
func (c *AppConfig) DefaultItemSimilarityWeight() float64 { return c.Weights.ItemSimilarity }
func (c *AppConfig) DefaultTagSimilarityWeight() float64  { return c.Weights.TagSimilarity }
func (c *AppConfig) DefaultSeasonalWeight() float64       { return c.Weights.Seasonal }
func (c *AppConfig) DefaultLoadTimeout() time.Duration    { return c.Model.LoadTimeout }
