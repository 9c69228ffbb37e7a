package event

import (
	"fmt"
	"reflect"

	"github.com/nao1215/chat/pkg/record"
)

// New は新しい変更イベントを生成する。
// recordとoriginalはワイヤ形式にシリアライズされる。originalはnilでもよい。
func New(recordType RecordType, eventType Type, rec, original record.Record) (*Event, error) {
	if !eventType.Valid() {
		return nil, fmt.Errorf("未定義のイベント種別です: %q", eventType)
	}
	if isNil(rec) {
		return nil, fmt.Errorf("イベント対象のレコードがnilです")
	}

	data, err := record.Serialize(rec)
	if err != nil {
		return nil, fmt.Errorf("レコードのシリアライズに失敗: %w", err)
	}

	ev := &Event{
		RecordType: recordType,
		EventType:  eventType,
		Record:     data,
	}
	if !isNil(original) {
		orig, err := record.Serialize(original)
		if err != nil {
			return nil, fmt.Errorf("変更前レコードのシリアライズに失敗: %w", err)
		}
		ev.OriginalRecord = orig
	}
	return ev, nil
}

// DecodeRecord はイベントのRecordフィールドをRawレコードにデシリアライズする。
func (e *Event) DecodeRecord() (*record.Raw, error) {
	r, err := record.Deserialize(e.Record)
	if err != nil {
		return nil, fmt.Errorf("イベントレコードのデシリアライズに失敗: %w", err)
	}
	return r, nil
}

// DecodeOriginalRecord はイベントのOriginalRecordフィールドをデシリアライズする。
// 変更前レコードが無い場合は (nil, nil) を返す。
func (e *Event) DecodeOriginalRecord() (*record.Raw, error) {
	if len(e.OriginalRecord) == 0 || string(e.OriginalRecord) == "null" {
		return nil, nil
	}
	r, err := record.Deserialize(e.OriginalRecord)
	if err != nil {
		return nil, fmt.Errorf("変更前レコードのデシリアライズに失敗: %w", err)
	}
	return r, nil
}

// isNil はインターフェース値がnil、またはnilポインタを保持しているかを返す。
func isNil(r record.Record) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
