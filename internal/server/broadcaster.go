package server

import (
	"sync"

	"photobooth/internal/booth"
)

// EventBroadcaster はセッションイベントを複数のSSEクライアントに配る
type EventBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan booth.Event]struct{}
}

// NewEventBroadcaster は新しいEventBroadcasterを作成する
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients: make(map[chan booth.Event]struct{}),
	}
}

// Subscribe はイベントを受け取るチャンネルと購読解除の関数を返す
// 切断時には必ず解除関数を呼ぶこと
func (b *EventBroadcaster) Subscribe() (<-chan booth.Event, func()) {
	ch := make(chan booth.Event, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Publish は全てのクライアントにイベントを送る
// 受信が追いつかないクライアントへのイベントは捨てる（ブロックしない）
func (b *EventBroadcaster) Publish(ev booth.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

// ClientCount は接続中のクライアント数を返す
func (b *EventBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
