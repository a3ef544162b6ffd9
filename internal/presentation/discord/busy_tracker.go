package discord

import "sync"

// BusyState は、チャンネルごとの処理状態です
type BusyState int

const (
	// StateIdle は、処理中の操作がない状態です
	StateIdle BusyState = iota
	// StateInFlight は、操作の完了を待っている状態です
	StateInFlight
)

func (s BusyState) String() string {
	switch s {
	case StateInFlight:
		return "処理中"
	default:
		return "待機中"
	}
}

// BusyTracker は、チャンネルごとに処理中の操作を1つに制限します
// 状態遷移は Idle → InFlight → Idle のみです
type BusyTracker struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewBusyTracker は新しいBusyTrackerインスタンスを作成します
func NewBusyTracker() *BusyTracker {
	return &BusyTracker{
		inFlight: make(map[string]struct{}),
	}
}

// TryAcquire は、チャンネルがIdleの場合にInFlightへ遷移させてtrueを返します
func (t *BusyTracker) TryAcquire(channelID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.inFlight[channelID]; busy {
		return false
	}
	t.inFlight[channelID] = struct{}{}
	return true
}

// Release は、チャンネルをIdleに戻します
func (t *BusyTracker) Release(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.inFlight, channelID)
}

// State は、チャンネルの現在の状態を返します
func (t *BusyTracker) State(channelID string) BusyState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.inFlight[channelID]; busy {
		return StateInFlight
	}
	return StateIdle
}

// InFlightCount は、処理中のチャンネル数を返します
func (t *BusyTracker) InFlightCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.inFlight)
}
