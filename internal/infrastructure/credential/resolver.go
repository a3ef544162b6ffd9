package credential

import (
	"errors"
	"strings"
	"sync"

	"akibot/internal/domain"
	"akibot/internal/infrastructure/config"

	"go.uber.org/zap"
)

// Resolver は、優先順位付きの設定ソースからAPIキーを解決します
// 解決に成功した値はプロセスの存続期間中メモ化され、再解決は行いません
type Resolver struct {
	sources []Source
	logger  *zap.Logger

	mu       sync.Mutex
	resolved map[string]domain.Credential
}

// NewResolver は、指定された順序でソースを検索するResolverを作成します
func NewResolver(logger *zap.Logger, sources ...Source) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		sources:  sources,
		logger:   logger.With(zap.String("component", "credential")),
		resolved: make(map[string]domain.Credential),
	}
}

// NewDefaultResolver は、環境変数 → バンドル設定 → ビルド時設定の順で検索するResolverを作成します
func NewDefaultResolver(logger *zap.Logger, cfg config.CredentialSourceConfig) (*Resolver, error) {
	bundle, err := LoadBundleSource(cfg.AppConfigFile)
	if err != nil {
		return nil, err
	}
	build, err := LoadBuildConfigSource(cfg.BuildConfigFile)
	if err != nil {
		return nil, err
	}
	return NewResolver(logger, NewEnvSource(), bundle, build), nil
}

// Resolve は、指定された名前の認証情報を解決します
// どのソースにも空でない値がない場合は設定エラーを返します
func (r *Resolver) Resolve(name string) (domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if credential, ok := r.resolved[name]; ok {
		return credential, nil
	}

	for _, source := range r.sources {
		value, ok := source.Lookup(name)
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}

		credential := domain.NewCredential(name, value, source.Name())
		r.resolved[name] = credential
		r.logger.Info("認証情報を読み込みました",
			zap.String("name", name),
			zap.String("source", source.Name()),
			zap.String("prefix", credential.Prefix()+"..."))
		return credential, nil
	}

	fields := []zap.Field{zap.String("name", name)}
	for _, source := range r.sources {
		fields = append(fields, zap.Strings(source.Name()+"_keys", source.Keys()))
	}
	r.logger.Warn("認証情報がどの設定ソースにも見つかりません", fields...)

	return domain.Credential{}, domain.ConfigurationError(name)
}

// ResolveAll は、複数の認証情報をまとめて解決し、失敗したものをすべて報告します
func (r *Resolver) ResolveAll(names ...string) (map[string]domain.Credential, error) {
	result := make(map[string]domain.Credential, len(names))
	var errs []error
	for _, name := range names {
		credential, err := r.Resolve(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result[name] = credential
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}
