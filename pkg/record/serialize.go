package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// 予約フィールド名。
const (
	fieldID        = "_id"
	fieldOwnerID   = "_ownerID"
	fieldAccess    = "_access"
	fieldCreatedAt = "_created_at"
)

// Serialize はレコードをワイヤ形式のJSONにシリアライズする。
// "_" で始まるフィールド名は予約済みのため、RecordFieldsに含めるとエラーになる。
func Serialize(r Record) (json.RawMessage, error) {
	if r == nil {
		return nil, fmt.Errorf("シリアライズ対象のレコードがnilです")
	}

	id := r.RecordID()
	if id.IsZero() {
		return nil, fmt.Errorf("レコードIDが設定されていません")
	}

	fields := r.RecordFields()
	wire := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		if strings.HasPrefix(k, "_") {
			return nil, fmt.Errorf("予約フィールド名は使用できません: %q", k)
		}
		wire[k] = v
	}

	wire[fieldID] = id.String()
	wire[fieldOwnerID] = r.RecordOwner()
	// nilのACLはnull、空のACLは[]として区別して出力する
	if access := r.RecordAccess(); access != nil {
		wire[fieldAccess] = access
	} else {
		wire[fieldAccess] = nil
	}
	if ts, ok := r.(Timestamped); ok && !ts.RecordCreatedAt().IsZero() {
		wire[fieldCreatedAt] = ts.RecordCreatedAt().UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("レコードのシリアライズに失敗: %w", err)
	}
	return data, nil
}

// Raw はデシリアライズされた型なしのレコード。
// イベント購読側やテストでワイヤ形式を検査するために使用する。
type Raw struct {
	// ID はレコードID。
	ID ID
	// OwnerID はレコード所有者のユーザーID。
	OwnerID string
	// Access はアクセス制御リスト。nullの場合はnil。
	Access []AccessEntry
	// CreatedAt は作成日時。出力されていない場合はゼロ値。
	CreatedAt time.Time
	// Fields は予約フィールド以外のフィールド。
	Fields map[string]json.RawMessage
}

// RecordID はレコードIDを返す。
func (r *Raw) RecordID() ID { return r.ID }

// RecordOwner はレコード所有者を返す。
func (r *Raw) RecordOwner() string { return r.OwnerID }

// RecordAccess はアクセス制御リストを返す。
func (r *Raw) RecordAccess() []AccessEntry { return r.Access }

// RecordFields はフィールドを返す。
func (r *Raw) RecordFields() map[string]any {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return fields
}

// RecordCreatedAt は作成日時を返す。
func (r *Raw) RecordCreatedAt() time.Time { return r.CreatedAt }

// Ref は指定フィールドを参照としてデコードする。
// フィールドが存在しないかnullの場合はfalseを返す。
func (r *Raw) Ref(name string) (Ref, bool, error) {
	v, ok := r.Fields[name]
	if !ok || string(v) == "null" {
		return Ref{}, false, nil
	}
	var ref Ref
	if err := json.Unmarshal(v, &ref); err != nil {
		return Ref{}, false, fmt.Errorf("フィールド %q の参照デコードに失敗: %w", name, err)
	}
	return ref, true, nil
}

// Deserialize はワイヤ形式のJSONをRawレコードに変換する。
func Deserialize(data []byte) (*Raw, error) {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("レコードのデシリアライズに失敗: %w", err)
	}

	rawID, ok := wire[fieldID]
	if !ok {
		return nil, fmt.Errorf("%sフィールドがありません", fieldID)
	}
	r := &Raw{Fields: make(map[string]json.RawMessage, len(wire))}
	if err := json.Unmarshal(rawID, &r.ID); err != nil {
		return nil, fmt.Errorf("%sのデコードに失敗: %w", fieldID, err)
	}
	if v, ok := wire[fieldOwnerID]; ok {
		if err := json.Unmarshal(v, &r.OwnerID); err != nil {
			return nil, fmt.Errorf("%sのデコードに失敗: %w", fieldOwnerID, err)
		}
	}
	if v, ok := wire[fieldAccess]; ok && string(v) != "null" {
		r.Access = []AccessEntry{}
		if err := json.Unmarshal(v, &r.Access); err != nil {
			return nil, fmt.Errorf("%sのデコードに失敗: %w", fieldAccess, err)
		}
	}
	if v, ok := wire[fieldCreatedAt]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, fmt.Errorf("%sのデコードに失敗: %w", fieldCreatedAt, err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("%sのパースに失敗: %w", fieldCreatedAt, err)
		}
		r.CreatedAt = createdAt
	}

	for k, v := range wire {
		if strings.HasPrefix(k, "_") {
			continue
		}
		r.Fields[k] = v
	}
	return r, nil
}
