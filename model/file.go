package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/grocerec/core"
)

// bundleFile 是模型文件的结构（支持 YAML/JSON，JSON 作为 YAML 子集解析）。
//
//	user_item_matrix:
//	  u1: {milk: 3, bread: 1}
//	item_similarity:
//	  milk: {cereal: 0.8, butter: 0.2}
//	tag_similarity:
//	  bread: {cereal: 0.5}
//	seasonal_popularity:
//	  - {item: watermelon, season: summer, purchase_count: 100}
type bundleFile struct {
	UserItemMatrix     *Matrix          `yaml:"user_item_matrix"`
	ItemSimilarity     *Matrix          `yaml:"item_similarity"`
	TagSimilarity      *Matrix          `yaml:"tag_similarity,omitempty"`
	SeasonalPopularity []SeasonalRecord `yaml:"seasonal_popularity"`
}

// Decode 从 r 读取模型文件并构建 Bundle。
func Decode(r io.Reader) (*Bundle, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f bundleFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "model: empty bundle")
		}
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput, "model: parse bundle: %v", err)
	}
	if f.UserItemMatrix == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "model: user_item_matrix is required")
	}
	return NewBundle(f.UserItemMatrix, f.ItemSimilarity, f.TagSimilarity, f.SeasonalPopularity)
}

// Encode 以 YAML 写出 Bundle，Decode(Encode(b)) 得到等价的 Bundle。
func Encode(w io.Writer, b *Bundle) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	f := bundleFile{
		UserItemMatrix:     b.userItems,
		ItemSimilarity:     b.itemSim,
		SeasonalPopularity: b.seasonal,
	}
	if b.tagSim.Len() > 0 {
		f.TagSimilarity = b.tagSim
	}
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return enc.Close()
}

// Load 从文件路径加载 Bundle。
func Load(path string) (*Bundle, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer fh.Close()

	b, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Source 是 Bundle 的来源，启动时与热更新时调用。
type Source interface {
	// Name 返回来源描述（用于日志）
	Name() string

	// Load 构建一个完整的新 Bundle
	Load(ctx context.Context) (*Bundle, error)
}

// FileSource 从本地文件加载 Bundle。
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) Load(ctx context.Context) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Load(s.Path)
}
