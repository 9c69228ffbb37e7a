package pubsub

import (
	"log"
	"sync"
)

// Subscriber はチャンネルの購読者。
type Subscriber struct {
	channel   string
	send      chan []byte
	closeOnce sync.Once
}

// Channel は購読しているチャンネル名を返す。
func (s *Subscriber) Channel() string {
	return s.channel
}

// Messages は配信されたペイロードを受け取るチャネルを返す。
// 購読が解除されるとクローズされる。
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// Hub はチャンネル名ごとの購読者を管理する。
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Subscriber]struct{}
	// buffer は購読者ごとの送信バッファ数。
	buffer int
}

// NewHub は新しいHubを生成する。
func NewHub(buffer int) *Hub {
	return &Hub{
		channels: make(map[string]map[*Subscriber]struct{}),
		buffer:   buffer,
	}
}

// Subscribe はチャンネルの購読者を登録する。
func (h *Hub) Subscribe(channel string) *Subscriber {
	sub := &Subscriber{
		channel: channel,
		send:    make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		h.channels[channel] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Unsubscribe は購読を解除し、購読者の受信チャネルをクローズする。複数回呼んでもよい。
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.channels[sub.channel]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.channels, sub.channel)
		}
	}
	// Publish は読み取りロック中にのみ送信するため、ここでのクローズと競合しない
	sub.closeOnce.Do(func() { close(sub.send) })
}

// Publish はチャンネルの全購読者にペイロードを配信し、配信できた購読者数を返す。
// 送信バッファが満杯の購読者はスキップする。
func (h *Hub) Publish(channel string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.channels[channel] {
		select {
		case sub.send <- payload:
			delivered++
		default:
			log.Printf("[Hub] 送信バッファが満杯のため配信をスキップ: channel=%s", channel)
		}
	}
	return delivered
}

// SubscriberCount はチャンネルの購読者数を返す。
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
