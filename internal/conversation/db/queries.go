package db

import (
	"context"
	"database/sql"
)

const createConversation = `
INSERT INTO conversation (_id, _owner_id, title, _created_at)
VALUES (?, ?, ?, ?)
`

// CreateConversationParams はCreateConversationのパラメータ。
type CreateConversationParams struct {
	ID        string
	OwnerID   string
	Title     string
	CreatedAt string
}

// CreateConversation は会話を作成する。
func (q *Queries) CreateConversation(ctx context.Context, arg CreateConversationParams) error {
	_, err := q.db.ExecContext(ctx, createConversation, arg.ID, arg.OwnerID, arg.Title, arg.CreatedAt)
	return err
}

const getConversation = `
SELECT _id, _owner_id, title, _created_at FROM conversation WHERE _id = ?
`

// GetConversation はIDで会話を取得する。
func (q *Queries) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var c Conversation
	err := q.db.QueryRowContext(ctx, getConversation, id).Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt)
	return c, err
}

const createMessage = `
INSERT INTO message (_id, _owner_id, conversation_id, body, _created_at)
VALUES (?, ?, ?, ?, ?)
`

// CreateMessageParams はCreateMessageのパラメータ。
type CreateMessageParams struct {
	ID             string
	OwnerID        string
	ConversationID string
	Body           string
	CreatedAt      string
}

// CreateMessage はメッセージを作成する。
func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) error {
	_, err := q.db.ExecContext(ctx, createMessage, arg.ID, arg.OwnerID, arg.ConversationID, arg.Body, arg.CreatedAt)
	return err
}

const getMessage = `
SELECT _id, _owner_id, conversation_id, body, _created_at FROM message WHERE _id = ?
`

// GetMessage はIDでメッセージを取得する。
func (q *Queries) GetMessage(ctx context.Context, id string) (Message, error) {
	var m Message
	err := q.db.QueryRowContext(ctx, getMessage, id).Scan(&m.ID, &m.OwnerID, &m.ConversationID, &m.Body, &m.CreatedAt)
	return m, err
}

// countMessagesAfter は基準メッセージより後に作成されたメッセージ数を数える。
// 基準メッセージが存在しない場合、サブクエリはNULLになり比較は常に偽となるため0件になる。
const countMessagesAfter = `
SELECT COUNT(*)
FROM message
WHERE
    conversation_id = ? AND
    _created_at > (
        SELECT _created_at FROM message
        WHERE _id = ?
    )
`

// CountMessagesAfterParams はCountMessagesAfterのパラメータ。
type CountMessagesAfterParams struct {
	ConversationID string
	MessageID      string
}

// CountMessagesAfter は会話内で基準メッセージより後に作成されたメッセージ数を返す。
func (q *Queries) CountMessagesAfter(ctx context.Context, arg CountMessagesAfterParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countMessagesAfter, arg.ConversationID, arg.MessageID).Scan(&count)
	return count, err
}

const insertUserConversation = `
INSERT INTO user_conversation (
    _id, _owner_id, _access, user_id, conversation_id,
    last_read_message_id, unread_count, _created_at, _updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// InsertUserConversationParams はInsertUserConversationのパラメータ。
type InsertUserConversationParams struct {
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

// InsertUserConversation はメンバーシップを挿入する。同じIDが存在する場合は主キー制約違反になる。
func (q *Queries) InsertUserConversation(ctx context.Context, arg InsertUserConversationParams) error {
	_, err := q.db.ExecContext(ctx, insertUserConversation,
		arg.ID, arg.OwnerID, arg.Access, arg.UserID, arg.ConversationID,
		arg.LastReadMessageID, arg.UnreadCount, arg.CreatedAt, arg.UpdatedAt,
	)
	return err
}

const getUserConversation = `
SELECT _id, _owner_id, _access, user_id, conversation_id,
       last_read_message_id, unread_count, _created_at, _updated_at
FROM user_conversation
WHERE _id = ?
`

// GetUserConversation はIDでメンバーシップを取得する。
func (q *Queries) GetUserConversation(ctx context.Context, id string) (UserConversation, error) {
	var u UserConversation
	err := q.db.QueryRowContext(ctx, getUserConversation, id).Scan(
		&u.ID, &u.OwnerID, &u.Access, &u.UserID, &u.ConversationID,
		&u.LastReadMessageID, &u.UnreadCount, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

const updateUserConversation = `
UPDATE user_conversation
SET _owner_id = ?, _access = ?, last_read_message_id = ?, unread_count = ?, _updated_at = ?
WHERE _id = ?
`

// UpdateUserConversationParams はUpdateUserConversationのパラメータ。
type UpdateUserConversationParams struct {
	OwnerID           string
	Access            string
	LastReadMessageID sql.NullString
	UnreadCount       int64
	UpdatedAt         string
	ID                string
}

// UpdateUserConversation はメンバーシップの可変フィールドを更新し、更新件数を返す。
func (q *Queries) UpdateUserConversation(ctx context.Context, arg UpdateUserConversationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateUserConversation,
		arg.OwnerID, arg.Access, arg.LastReadMessageID, arg.UnreadCount, arg.UpdatedAt, arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteUserConversation = `
DELETE FROM user_conversation WHERE _id = ?
`

// DeleteUserConversation はメンバーシップを削除し、削除件数を返す。
func (q *Queries) DeleteUserConversation(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteUserConversation, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listParticipants = `
SELECT user_id FROM user_conversation WHERE conversation_id = ? ORDER BY user_id
`

// ListParticipants は会話の参加者のユーザーIDを返す。
func (q *Queries) ListParticipants(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listParticipants, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}

const totalUnread = `
SELECT COUNT(*), COALESCE(SUM(unread_count), 0)
FROM user_conversation
WHERE
    unread_count > 0 AND
    user_id = ?
`

// TotalUnreadRow はTotalUnreadの結果。
type TotalUnreadRow struct {
	ConversationCount int64
	MessageCount      int64
}

// TotalUnread はユーザーの未読がある会話数と未読メッセージの合計を返す。
func (q *Queries) TotalUnread(ctx context.Context, userID string) (TotalUnreadRow, error) {
	var r TotalUnreadRow
	err := q.db.QueryRowContext(ctx, totalUnread, userID).Scan(&r.ConversationCount, &r.MessageCount)
	return r, err
}

const upsertUserChannel = `
INSERT INTO user_channel (user_id, name, _updated_at)
VALUES (?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET name = excluded.name, _updated_at = excluded._updated_at
`

// UpsertUserChannelParams はUpsertUserChannelのパラメータ。
type UpsertUserChannelParams struct {
	UserID    string
	Name      string
	UpdatedAt string
}

// UpsertUserChannel はユーザーのチャンネルを登録または更新する。
func (q *Queries) UpsertUserChannel(ctx context.Context, arg UpsertUserChannelParams) error {
	_, err := q.db.ExecContext(ctx, upsertUserChannel, arg.UserID, arg.Name, arg.UpdatedAt)
	return err
}

const getUserChannel = `
SELECT user_id, name, _updated_at FROM user_channel WHERE user_id = ?
`

// GetUserChannel はユーザーのチャンネルを取得する。
func (q *Queries) GetUserChannel(ctx context.Context, userID string) (UserChannel, error) {
	var c UserChannel
	err := q.db.QueryRowContext(ctx, getUserChannel, userID).Scan(&c.UserID, &c.Name, &c.UpdatedAt)
	return c, err
}
