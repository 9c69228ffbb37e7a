package conversation

import (
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/chat/pkg/event"
	"github.com/nao1215/chat/pkg/record"
)

const (
	recordTypeConversation     = string(event.RecordTypeConversation)
	recordTypeMessage          = string(event.RecordTypeMessage)
	recordTypeUserConversation = string(event.RecordTypeUserConversation)
	recordTypeUser             = "user"
)

// timeLayout はDBに保存する日時の形式。固定長のため文字列比較が時刻順になる。
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Conversation は会話レコード。
type Conversation struct {
	// ID は会話の一意識別子。
	ID string
	// OwnerID は会話を作成したユーザーのID。
	OwnerID string
	// Title は会話のタイトル。
	Title string
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

func (c *Conversation) RecordID() record.ID                { return record.NewID(recordTypeConversation, c.ID) }
func (c *Conversation) RecordOwner() string                { return c.OwnerID }
func (c *Conversation) RecordAccess() []record.AccessEntry { return nil }
func (c *Conversation) RecordCreatedAt() time.Time         { return c.CreatedAt }
func (c *Conversation) RecordFields() map[string]any {
	return map[string]any{"title": c.Title}
}

// Message はメッセージレコード。
type Message struct {
	// ID はメッセージの一意識別子。
	ID string
	// OwnerID は送信したユーザーのID。
	OwnerID string
	// ConversationID は所属する会話のID。
	ConversationID string
	// Body は本文。
	Body string
	// CreatedAt は作成日時。未読数の計算に使う順序キー。
	CreatedAt time.Time
}

func (m *Message) RecordID() record.ID                { return record.NewID(recordTypeMessage, m.ID) }
func (m *Message) RecordOwner() string                { return m.OwnerID }
func (m *Message) RecordAccess() []record.AccessEntry { return nil }
func (m *Message) RecordCreatedAt() time.Time         { return m.CreatedAt }
func (m *Message) RecordFields() map[string]any {
	return map[string]any{
		"body":         m.Body,
		"conversation": record.NewRef(recordTypeConversation, m.ConversationID),
	}
}

// Membership は参加者1人と会話1つの関係を表すメンバーシップレコード。
type Membership struct {
	// ID は DeriveID で導出した識別子。
	ID uuid.UUID
	// OwnerID は書き込みを行った資格情報のユーザーID。
	OwnerID string
	// Access はアクセス制御リスト。既定は空（非公開）。
	Access []record.AccessEntry
	// UserID は参加者のユーザーID。
	UserID string
	// ConversationID は会話のID。
	ConversationID string
	// LastReadMessageID は最後に既読にしたメッセージのID。空は未設定を表す。
	LastReadMessageID string
	// UnreadCount は未読メッセージ数。メッセージの順序から再計算される導出値。
	UnreadCount int64
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// NewMembership は未読数0、空のACLを持つメンバーシップを生成する。
func NewMembership(conversationID, participantID string) *Membership {
	return &Membership{
		ID:             DeriveID(conversationID, participantID),
		Access:         []record.AccessEntry{},
		UserID:         participantID,
		ConversationID: conversationID,
	}
}

func (m *Membership) RecordID() record.ID {
	return record.NewID(recordTypeUserConversation, m.ID.String())
}
func (m *Membership) RecordOwner() string                { return m.OwnerID }
func (m *Membership) RecordAccess() []record.AccessEntry { return m.Access }
func (m *Membership) RecordCreatedAt() time.Time         { return m.CreatedAt }

func (m *Membership) RecordFields() map[string]any {
	var lastRead any
	if m.LastReadMessageID != "" {
		lastRead = record.NewRef(recordTypeMessage, m.LastReadMessageID)
	}
	return map[string]any{
		"user":              record.NewRef(recordTypeUser, m.UserID),
		"conversation":      record.NewRef(recordTypeConversation, m.ConversationID),
		"last_read_message": lastRead,
		"unread_count":      m.UnreadCount,
	}
}

// clone はACLを含めてメンバーシップを複製する。
func (m *Membership) clone() *Membership {
	c := *m
	if m.Access != nil {
		c.Access = append([]record.AccessEntry{}, m.Access...)
	}
	return &c
}
