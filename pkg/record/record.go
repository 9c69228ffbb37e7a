// Package record はストレージとイベント配信で共有するレコードのワイヤ形式を提供する。
//
// レコードは "_id"（"type/key"形式）、"_ownerID"、"_access" の予約フィールドと、
// レコード種別ごとの任意フィールドで構成される。他レコードへの参照は
// {"$type":"ref","$id":"type/key"} の形式で表現する。
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidID はレコードIDの形式が不正な場合のエラー。
var ErrInvalidID = errors.New("レコードIDの形式が不正です")

// ID はレコードの識別子を表す。ワイヤ上では "type/key" 形式の文字列になる。
type ID struct {
	// Type はレコード種別（例: "message"）。
	Type string
	// Key は種別内での一意キー。
	Key string
}

// NewID は種別とキーからレコードIDを生成する。
func NewID(recordType, key string) ID {
	return ID{Type: recordType, Key: key}
}

// ParseID は "type/key" 形式の文字列をレコードIDに変換する。
func ParseID(s string) (ID, error) {
	recordType, key, found := strings.Cut(s, "/")
	if !found || recordType == "" || key == "" {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID{Type: recordType, Key: key}, nil
}

// String は "type/key" 形式の文字列を返す。
func (id ID) String() string {
	return id.Type + "/" + id.Key
}

// IsZero はIDが未設定かどうかを返す。
func (id ID) IsZero() bool {
	return id.Type == "" && id.Key == ""
}

// MarshalJSON はIDを "type/key" 形式の文字列としてシリアライズする。
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON は "type/key" 形式の文字列からIDを復元する。
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Ref は他レコードへの参照を表す。
type Ref struct {
	// ID は参照先レコードのID。
	ID ID
}

// NewRef は種別とキーから参照を生成する。
func NewRef(recordType, key string) Ref {
	return Ref{ID: NewID(recordType, key)}
}

type refWire struct {
	Type string `json:"$type"`
	ID   string `json:"$id"`
}

// MarshalJSON は参照を {"$type":"ref","$id":"type/key"} 形式でシリアライズする。
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(refWire{Type: "ref", ID: r.ID.String()})
}

// UnmarshalJSON は {"$type":"ref","$id":"type/key"} 形式から参照を復元する。
func (r *Ref) UnmarshalJSON(data []byte) error {
	var w refWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Type != "ref" {
		return fmt.Errorf("参照の$typeが不正です: %q", w.Type)
	}
	id, err := ParseID(w.ID)
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// AccessEntry はレコードのアクセス制御リストの1エントリ。
type AccessEntry struct {
	// Level はアクセスレベル（"read" または "write"）。
	Level string `json:"level"`
	// UserID は対象ユーザーのID。Publicの場合は空。
	UserID string `json:"user_id,omitempty"`
	// Public は全ユーザーを対象とするかどうか。
	Public bool `json:"public,omitempty"`
}

// Record はワイヤ形式にシリアライズ可能なレコード。
type Record interface {
	// RecordID はレコードIDを返す。
	RecordID() ID
	// RecordOwner はレコード所有者のユーザーIDを返す。
	RecordOwner() string
	// RecordAccess はアクセス制御リストを返す。nilはデフォルトACLを意味する。
	RecordAccess() []AccessEntry
	// RecordFields は予約フィールド以外のフィールドを返す。
	RecordFields() map[string]any
}

// Timestamped は作成日時を持つレコード。実装している場合は "_created_at" が出力される。
type Timestamped interface {
	RecordCreatedAt() time.Time
}
