package conversation

import (
	"crypto/sha256"

	"github.com/google/uuid"
	"github.com/nao1215/chat/pkg/record"
)

// DeriveID は会話IDと参加者IDからメンバーシップIDを導出する。
// 2つのIDを区切り文字なしで連結したSHA-256ダイジェストの先頭16バイトをUUIDとして扱う。
// 同じ組からは常に同じIDが得られるため、二重の参加は主キー制約違反として検出される。
func DeriveID(conversationID, participantID string) uuid.UUID {
	sum := sha256.Sum256([]byte(conversationID + participantID))
	// 16バイトちょうどを渡すのでFromBytesは失敗しない
	id, _ := uuid.FromBytes(sum[:16])
	return id
}

// MembershipRecordID はメンバーシップのレコードID（user_conversation/<uuid>）を返す。
func MembershipRecordID(conversationID, participantID string) record.ID {
	return record.NewID(recordTypeUserConversation, DeriveID(conversationID, participantID).String())
}
