package event

import (
	"encoding/json"
)

// RecordType は変更イベントの対象となるレコードの種類を表す。
type RecordType string

const (
	// RecordTypeConversation は会話レコードを表す。
	RecordTypeConversation RecordType = "conversation"
	// RecordTypeMessage はメッセージレコードを表す。
	RecordTypeMessage RecordType = "message"
	// RecordTypeUserConversation は会話の参加者ごとのメンバーシップレコードを表す。
	RecordTypeUserConversation RecordType = "user_conversation"
)

// Type は変更イベントの種類を表す。
type Type string

const (
	// TypeCreate はレコードが作成されたことを表す。
	TypeCreate Type = "create"
	// TypeUpdate はレコードが更新されたことを表す。
	TypeUpdate Type = "update"
	// TypeDelete はレコードが削除されたことを表す。
	TypeDelete Type = "delete"
)

// Valid はイベント種別が定義済みの値かどうかを返す。
func (t Type) Valid() bool {
	switch t {
	case TypeCreate, TypeUpdate, TypeDelete:
		return true
	default:
		return false
	}
}

// Event は購読者のチャンネルに配信される変更イベントのエンベロープ。
// 永続化はされず、配信ごとに生成される。
type Event struct {
	// RecordType は対象レコードの種類。
	RecordType RecordType `json:"record_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Record は変更後のレコード（ワイヤ形式）。
	Record json.RawMessage `json:"record"`
	// OriginalRecord は変更前のレコード（ワイヤ形式）。無い場合はnull。
	OriginalRecord json.RawMessage `json:"original_record"`
}
