// Package event は会話データの変更を購読者に通知するための変更イベントを定義する。
//
// 変更イベントは {record_type, event_type, record, original_record} の
// エンベロープで構成され、record と original_record はストレージと共通の
// レコードワイヤ形式（pkg/record）でシリアライズされる。
package event
