package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source は、認証情報を検索する設定ソースのインターフェースです
type Source interface {
	// Name は診断用のソース名を返します
	Name() string

	// Lookup は、指定されたキーの値を返します
	Lookup(key string) (string, bool)

	// Keys は、診断用にソースが持つキー名の一覧を返します（値は含みません）
	Keys() []string
}

// EnvSource は、プロセスの環境変数から値を取得します
type EnvSource struct {
	lookup  func(string) (string, bool)
	environ func() []string
}

// NewEnvSource は新しいEnvSourceインスタンスを作成します
func NewEnvSource() *EnvSource {
	return &EnvSource{lookup: os.LookupEnv, environ: os.Environ}
}

// Name はソース名を返します
func (s *EnvSource) Name() string { return "environment" }

// Lookup は環境変数を取得します
func (s *EnvSource) Lookup(key string) (string, bool) {
	return s.lookup(key)
}

// Keys は環境変数名の一覧を返します
func (s *EnvSource) Keys() []string {
	var keys []string
	for _, kv := range s.environ() {
		if name, _, ok := strings.Cut(kv, "="); ok {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

// MapSource は、読み込み済みのキーと値の組から値を取得します
type MapSource struct {
	name   string
	values map[string]string
}

// NewMapSource は新しいMapSourceインスタンスを作成します
func NewMapSource(name string, values map[string]string) *MapSource {
	if values == nil {
		values = map[string]string{}
	}
	return &MapSource{name: name, values: values}
}

// Name はソース名を返します
func (s *MapSource) Name() string { return s.name }

// Lookup は値を取得します
func (s *MapSource) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys はキー名の一覧を返します
func (s *MapSource) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadBundleSource は、アプリケーションにバンドルされたYAML設定を読み込みます
// ファイルが存在しない場合は空のソースを返します。文字列以外の値は無視します
func LoadBundleSource(path string) (*MapSource, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) || path == "" {
		return NewMapSource("bundle", nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("バンドル設定の読み込みに失敗: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("バンドル設定の解析に失敗: %w", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			values[k] = s
		}
	}
	return NewMapSource("bundle", values), nil
}

// LoadBuildConfigSource は、ビルド時設定ファイル（KEY=VALUE形式）を読み込みます
// ファイルが存在しない場合は空のソースを返します
func LoadBuildConfigSource(path string) (*MapSource, error) {
	if path == "" {
		return NewMapSource("build-config", nil), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return NewMapSource("build-config", nil), nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("ビルド時設定の読み込みに失敗: %w", err)
	}
	return NewMapSource("build-config", values), nil
}
