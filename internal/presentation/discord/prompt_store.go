package discord

import (
	"strings"
	"sync"
)

// EnhancedPromptStore は、チャンネルとユーザーごとに直近の改善済みプロンプトを保持します
// 同じプロンプトで画像を生成する際、改善をやり直さずに再利用します
type EnhancedPromptStore struct {
	mu      sync.Mutex
	entries map[promptKey]enhancedEntry
}

type promptKey struct {
	channelID string
	userID    string
}

type enhancedEntry struct {
	original string
	enhanced string
}

// NewEnhancedPromptStore は新しいEnhancedPromptStoreインスタンスを作成します
func NewEnhancedPromptStore() *EnhancedPromptStore {
	return &EnhancedPromptStore{
		entries: make(map[promptKey]enhancedEntry),
	}
}

// Put は、元のプロンプトと改善済みプロンプトを記録します。以前の記録は置き換えられます
func (s *EnhancedPromptStore) Put(channelID, userID, original, enhanced string) {
	if strings.TrimSpace(enhanced) == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[promptKey{channelID, userID}] = enhancedEntry{
		original: strings.TrimSpace(original),
		enhanced: enhanced,
	}
}

// Lookup は、元のプロンプトが直近の記録と一致する場合に改善済みプロンプトを返します
func (s *EnhancedPromptStore) Lookup(channelID, userID, original string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[promptKey{channelID, userID}]
	if !ok || entry.original != strings.TrimSpace(original) {
		return "", false
	}
	return entry.enhanced, true
}
