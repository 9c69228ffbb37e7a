package event

import (
	"encoding/json"
	"testing"
)

// TestRecordTypeConstants はRecordType定数の値を検証する。
func TestRecordTypeConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  RecordType
		want string
	}{
		{
			name: "RecordTypeConversationの値が正しいこと",
			got:  RecordTypeConversation,
			want: "conversation",
		},
		{
			name: "RecordTypeMessageの値が正しいこと",
			got:  RecordTypeMessage,
			want: "message",
		},
		{
			name: "RecordTypeUserConversationの値が正しいこと",
			got:  RecordTypeUserConversation,
			want: "user_conversation",
		},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if string(tt.got) != tt.want {
				t.Errorf("RecordType = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// TestTypeValid はType.Validを検証する。
func TestTypeValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  Type
		want bool
	}{
		{name: "createは有効", got: TypeCreate, want: true},
		{name: "updateは有効", got: TypeUpdate, want: true},
		{name: "deleteは有効", got: TypeDelete, want: true},
		{name: "未定義の値は無効", got: Type("upsert"), want: false},
		{name: "空文字列は無効", got: Type(""), want: false},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.got.Valid(); got != tt.want {
				t.Errorf("Type(%q).Valid() = %v, want %v", tt.got, got, tt.want)
			}
		})
	}
}

// TestEventJSON はEventのJSONフィールド名を検証する。
func TestEventJSON(t *testing.T) {
	t.Parallel()

	t.Run("変更前レコードが無い場合original_recordはnullになること", func(t *testing.T) {
		t.Parallel()

		ev := Event{
			RecordType: RecordTypeMessage,
			EventType:  TypeCreate,
			Record:     json.RawMessage(`{"_id":"message/1"}`),
		}

		data, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("json.Marshal()でエラーが発生: %v", err)
		}

		var wire map[string]json.RawMessage
		if err := json.Unmarshal(data, &wire); err != nil {
			t.Fatalf("JSONのデコードに失敗: %v", err)
		}
		for _, key := range []string{"record_type", "event_type", "record", "original_record"} {
			if _, ok := wire[key]; !ok {
				t.Errorf("キー %q が存在しない", key)
			}
		}
		if string(wire["original_record"]) != "null" {
			t.Errorf("original_record = %s, want null", wire["original_record"])
		}
		if string(wire["record_type"]) != `"message"` {
			t.Errorf("record_type = %s, want %q", wire["record_type"], "message")
		}
	})
}
