// Package pubsub はチャンネル単位の変更イベント配信サービスを実装する。
//
// アプリケーション資格情報（X-Api-Key）を持つサービスがチャンネルにイベントを
// publishし、WebSocketでそのチャンネルを購読しているクライアントへ届ける。
// 配信はベストエフォートで、送信バッファが満杯の購読者にはそのイベントを届けない。
package pubsub
