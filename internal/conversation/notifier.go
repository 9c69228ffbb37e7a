package conversation

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nao1215/chat/pkg/event"
	"github.com/nao1215/chat/pkg/record"
)

// Publisher はチャンネルに変更イベントを配信するPub/Subの送信側。
type Publisher interface {
	Publish(ctx context.Context, channel string, ev *event.Event) error
}

// ChannelResolver はユーザーIDから購読チャンネル名を解決する。
// 購読していない場合は空文字列を返す。
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, userID string) (string, error)
}

// Notifier は参加者のチャンネルへ変更イベントを配信する。
type Notifier struct {
	resolver  ChannelResolver
	publisher Publisher
}

// NewNotifier は新しいNotifierを生成する。
func NewNotifier(resolver ChannelResolver, publisher Publisher) *Notifier {
	return &Notifier{resolver: resolver, publisher: publisher}
}

// Publish は参加者のチャンネルに変更イベントを配信する。
// 参加者がチャンネルを持たない場合は何もせずnilを返す。
// origは変更前のレコードで、無い場合はnilを渡す。
func (n *Notifier) Publish(ctx context.Context, participantID string, recordType event.RecordType, eventType event.Type, rec, orig record.Record) error {
	ev, err := event.New(recordType, eventType, rec, orig)
	if err != nil {
		return &NotificationError{Op: "serialize", Err: err}
	}

	channel, err := n.resolver.ResolveChannel(ctx, participantID)
	if err != nil {
		return &NotificationError{Op: "resolve", Err: err}
	}
	if channel == "" {
		return nil
	}

	if err := n.publisher.Publish(ctx, channel, ev); err != nil {
		return &NotificationError{Op: "publish", Channel: channel, Err: err}
	}
	return nil
}

// Dispatcher はコミット済みの変更の通知を非同期に行う。
// 配信の失敗はログに記録するだけで、呼び出し元には返さない。
type Dispatcher struct {
	notifier *Notifier
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher は新しいDispatcherを生成する。timeoutは1回の配信ごとの上限。
func NewDispatcher(notifier *Notifier, timeout time.Duration) *Dispatcher {
	return &Dispatcher{notifier: notifier, timeout: timeout}
}

// Go は参加者ごとに変更イベントの配信をバックグラウンドで開始する。
func (d *Dispatcher) Go(participantIDs []string, recordType event.RecordType, eventType event.Type, rec, orig record.Record) {
	for _, participantID := range participantIDs {
		d.wg.Add(1)
		go func(participantID string) {
			defer d.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := d.notifier.Publish(ctx, participantID, recordType, eventType, rec, orig); err != nil {
				log.Printf("[Notifier] 変更イベントの配信に失敗: user=%s, record_type=%s, event_type=%s: %v",
					participantID, recordType, eventType, err)
			}
		}(participantID)
	}
}

// Wait は実行中の配信がすべて終わるまで待つ。
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
