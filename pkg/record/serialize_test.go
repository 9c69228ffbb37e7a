package record

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// testMessage はテスト用のメッセージレコード。
type testMessage struct {
	key       string
	owner     string
	access    []AccessEntry
	body      string
	createdAt time.Time
	fields    map[string]any
}

func (m *testMessage) RecordID() ID                { return NewID("message", m.key) }
func (m *testMessage) RecordOwner() string         { return m.owner }
func (m *testMessage) RecordAccess() []AccessEntry { return m.access }
func (m *testMessage) RecordCreatedAt() time.Time  { return m.createdAt }
func (m *testMessage) RecordFields() map[string]any {
	if m.fields != nil {
		return m.fields
	}
	return map[string]any{
		"body":            m.body,
		"conversation_id": NewRef("conversation", "conversation1"),
	}
}

// TestParseID はParseID関数を検証する。
func TestParseID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{name: "type/key形式をパースできること", input: "message/1", want: NewID("message", "1")},
		{name: "キーにスラッシュを含んでもよいこと", input: "user/a/b", want: NewID("user", "a/b")},
		{name: "スラッシュが無い場合はエラー", input: "message", wantErr: true},
		{name: "種別が空の場合はエラー", input: "/1", wantErr: true},
		{name: "キーが空の場合はエラー", input: "message/", wantErr: true},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseID(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidID) {
					t.Fatalf("ParseID(%q) のエラー = %v, want ErrInvalidID", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q)でエラーが発生: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseID(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

// TestRefJSON は参照のワイヤ形式を検証する。
func TestRefJSON(t *testing.T) {
	t.Parallel()

	t.Run("$typeと$idの形式で出力されること", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(NewRef("user", "user1"))
		if err != nil {
			t.Fatalf("json.Marshal()でエラーが発生: %v", err)
		}
		want := `{"$type":"ref","$id":"user/user1"}`
		if string(data) != want {
			t.Errorf("Ref JSON = %s, want %s", data, want)
		}
	})

	t.Run("$typeがrefでない場合はエラー", func(t *testing.T) {
		t.Parallel()

		var ref Ref
		err := json.Unmarshal([]byte(`{"$type":"date","$id":"user/user1"}`), &ref)
		if err == nil {
			t.Fatal("エラーが返るべきだが、nilが返った")
		}
	})
}

// TestSerialize はSerialize関数を検証する。
func TestSerialize(t *testing.T) {
	t.Parallel()

	t.Run("予約フィールドと任意フィールドが出力されること", func(t *testing.T) {
		t.Parallel()

		createdAt := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
		data, err := Serialize(&testMessage{key: "1", owner: "user1", body: "hihi", createdAt: createdAt})
		if err != nil {
			t.Fatalf("Serialize()でエラーが発生: %v", err)
		}

		r, err := Deserialize(data)
		if err != nil {
			t.Fatalf("Deserialize()でエラーが発生: %v", err)
		}
		if r.ID != NewID("message", "1") {
			t.Errorf("ID = %v, want message/1", r.ID)
		}
		if r.OwnerID != "user1" {
			t.Errorf("OwnerID = %q, want %q", r.OwnerID, "user1")
		}
		if r.Access != nil {
			t.Errorf("Access = %v, want nil", r.Access)
		}
		if !r.CreatedAt.Equal(createdAt) {
			t.Errorf("CreatedAt = %v, want %v", r.CreatedAt, createdAt)
		}
		if string(r.Fields["body"]) != `"hihi"` {
			t.Errorf("body = %s, want %q", r.Fields["body"], "hihi")
		}
		ref, ok, err := r.Ref("conversation_id")
		if err != nil || !ok {
			t.Fatalf("Ref()が失敗: ok=%v, err=%v", ok, err)
		}
		if ref.ID != NewID("conversation", "conversation1") {
			t.Errorf("conversation_id = %v, want conversation/conversation1", ref.ID)
		}
	})

	t.Run("空のACLは空配列として出力されること", func(t *testing.T) {
		t.Parallel()

		data, err := Serialize(&testMessage{key: "2", access: []AccessEntry{}})
		if err != nil {
			t.Fatalf("Serialize()でエラーが発生: %v", err)
		}

		var wire map[string]json.RawMessage
		if err := json.Unmarshal(data, &wire); err != nil {
			t.Fatalf("JSONのデコードに失敗: %v", err)
		}
		if string(wire["_access"]) != "[]" {
			t.Errorf("_access = %s, want []", wire["_access"])
		}
	})

	t.Run("予約フィールド名を含むとエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := Serialize(&testMessage{key: "3", fields: map[string]any{"_id": "x"}})
		if err == nil {
			t.Fatal("エラーが返るべきだが、nilが返った")
		}
	})

	t.Run("nilレコードはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Serialize(nil); err == nil {
			t.Fatal("エラーが返るべきだが、nilが返った")
		}
	})
}

// TestDeserialize はDeserialize関数の異常系を検証する。
func TestDeserialize(t *testing.T) {
	t.Parallel()

	t.Run("_idが無い場合はエラー", func(t *testing.T) {
		t.Parallel()

		if _, err := Deserialize([]byte(`{"body":"hihi"}`)); err == nil {
			t.Fatal("エラーが返るべきだが、nilが返った")
		}
	})

	t.Run("不正なJSONはエラー", func(t *testing.T) {
		t.Parallel()

		if _, err := Deserialize([]byte(`{invalid`)); err == nil {
			t.Fatal("エラーが返るべきだが、nilが返った")
		}
	})

	t.Run("存在しない参照フィールドはfalseを返すこと", func(t *testing.T) {
		t.Parallel()

		r, err := Deserialize([]byte(`{"_id":"message/1","last_read_message":null}`))
		if err != nil {
			t.Fatalf("Deserialize()でエラーが発生: %v", err)
		}
		if _, ok, err := r.Ref("last_read_message"); ok || err != nil {
			t.Errorf("Ref(last_read_message) = ok=%v, err=%v, want false, nil", ok, err)
		}
		if _, ok, err := r.Ref("missing"); ok || err != nil {
			t.Errorf("Ref(missing) = ok=%v, err=%v, want false, nil", ok, err)
		}
	})
}
