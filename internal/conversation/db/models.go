package db

import "database/sql"

// Conversation はconversationテーブルの行。
type Conversation struct {
	ID        string
	OwnerID   string
	Title     string
	CreatedAt string
}

// Message はmessageテーブルの行。
type Message struct {
	ID             string
	OwnerID        string
	ConversationID string
	Body           string
	CreatedAt      string
}

// UserConversation はuser_conversationテーブルの行。
type UserConversation struct {
	ID                string
	OwnerID           string
	Access            string
	UserID            string
	ConversationID    string
	LastReadMessageID sql.NullString
	UnreadCount       int64
	CreatedAt         string
	UpdatedAt         string
}

// UserChannel はuser_channelテーブルの行。
type UserChannel struct {
	UserID    string
	Name      string
	UpdatedAt string
}
