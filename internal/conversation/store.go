package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	convdb "github.com/nao1215/chat/internal/conversation/db"
	"github.com/nao1215/chat/pkg/record"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store はSQLiteを使った会話サービスのレコードストア。
// メンバーシップの書き込みはトランザクション内で保存前フックを実行してから確定する。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// queries はクエリ実行オブジェクト。
	queries *convdb.Queries
	// masterKey は書き込みを許可するマスターキー。
	masterKey string
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time

	mu    sync.RWMutex
	hooks []BeforeSaveHook
}

// NewStore は新しいStoreを生成する。スキーマは初期化済みである必要がある。
func NewStore(db *sql.DB, masterKey string) *Store {
	return &Store{
		db:        db,
		queries:   convdb.New(db),
		masterKey: masterKey,
		now:       time.Now,
	}
}

// RegisterBeforeSave はメンバーシップの保存前フックを登録する。
// フックは登録順に実行される。
func (s *Store) RegisterBeforeSave(hook BeforeSaveHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (s *Store) beforeSaveHooks() []BeforeSaveHook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]BeforeSaveHook(nil), s.hooks...)
}

// authorize は資格情報のマスターキーを検証する。
func (s *Store) authorize(cred Credential) error {
	if cred.UserID == "" || cred.MasterKey != s.masterKey {
		return ErrForbidden
	}
	return nil
}

// InsertMembership はメンバーシップを新規に挿入する。
// 同じIDが存在する場合は ErrAlreadyMember を包んだ *StorageError を返す。
// 成功すると m には保存された内容が反映される。
func (s *Store) InsertMembership(ctx context.Context, cred Credential, m *Membership) error {
	saved, _, err := s.save(ctx, cred, m, true)
	if err != nil {
		return err
	}
	*m = *saved
	return nil
}

// SaveMembership はメンバーシップを保存する。存在しない場合は作成し、存在する場合は更新する。
// 保存前フックは変更前のレコードとトランザクション内のクエリハンドルを受け取る。
// フックが失敗した場合は何も書き込まない。保存後と変更前のレコードを返す。
func (s *Store) SaveMembership(ctx context.Context, cred Credential, m *Membership) (saved, orig *Membership, err error) {
	return s.save(ctx, cred, m, false)
}

func (s *Store) save(ctx context.Context, cred Credential, m *Membership, insertOnly bool) (*Membership, *Membership, error) {
	if m == nil {
		return nil, nil, &InvalidStateError{Reason: "保存対象のメンバーシップがnilです"}
	}
	if err := s.authorize(cred); err != nil {
		return nil, nil, &StorageError{Op: "save", Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, &StorageError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	q := s.queries.WithTx(tx)

	var orig *Membership
	if !insertOnly {
		row, err := q.GetUserConversation(ctx, m.ID.String())
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, nil, &StorageError{Op: "load", Err: err}
		default:
			orig, err = membershipFromRow(row)
			if err != nil {
				return nil, nil, &StorageError{Op: "load", Err: err}
			}
		}
	}

	rec := m.clone()
	for _, hook := range s.beforeSaveHooks() {
		var origArg *Membership
		if orig != nil {
			origArg = orig.clone()
		}
		rec, err = hook(ctx, messageCounter{queries: q}, rec, origArg)
		if err != nil {
			return nil, nil, err
		}
		if rec == nil {
			return nil, nil, &InvalidStateError{Reason: "保存前フックがnilを返しました"}
		}
	}

	access, err := json.Marshal(rec.Access)
	if err != nil {
		return nil, nil, &StorageError{Op: "encode_access", Err: err}
	}
	if rec.Access == nil {
		access = []byte("[]")
	}

	now := s.now()
	rec.UpdatedAt = now
	if orig == nil {
		rec.OwnerID = cred.UserID
		rec.CreatedAt = now
		err = q.InsertUserConversation(ctx, convdb.InsertUserConversationParams{
			ID:                rec.ID.String(),
			OwnerID:           rec.OwnerID,
			Access:            string(access),
			UserID:            rec.UserID,
			ConversationID:    rec.ConversationID,
			LastReadMessageID: nullString(rec.LastReadMessageID),
			UnreadCount:       rec.UnreadCount,
			CreatedAt:         formatTime(rec.CreatedAt),
			UpdatedAt:         formatTime(rec.UpdatedAt),
		})
		if isPrimaryKeyViolation(err) {
			return nil, nil, &StorageError{Op: "insert", Err: ErrAlreadyMember}
		}
		if err != nil {
			return nil, nil, &StorageError{Op: "insert", Err: err}
		}
	} else {
		// 所属する会話と参加者は変更できない
		rec.OwnerID = orig.OwnerID
		rec.UserID = orig.UserID
		rec.ConversationID = orig.ConversationID
		rec.CreatedAt = orig.CreatedAt
		if _, err := q.UpdateUserConversation(ctx, convdb.UpdateUserConversationParams{
			OwnerID:           rec.OwnerID,
			Access:            string(access),
			LastReadMessageID: nullString(rec.LastReadMessageID),
			UnreadCount:       rec.UnreadCount,
			UpdatedAt:         formatTime(rec.UpdatedAt),
			ID:                rec.ID.String(),
		}); err != nil {
			return nil, nil, &StorageError{Op: "update", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, &StorageError{Op: "commit", Err: err}
	}
	return rec, orig, nil
}

// DeleteMembership はメンバーシップを削除する。
// 存在しない場合は ErrMembershipNotFound を包んだ *StorageError を返す。
func (s *Store) DeleteMembership(ctx context.Context, cred Credential, id uuid.UUID) error {
	if err := s.authorize(cred); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	n, err := s.queries.DeleteUserConversation(ctx, id.String())
	if err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	if n == 0 {
		return &StorageError{Op: "delete", Err: ErrMembershipNotFound}
	}
	return nil
}

// GetMembership は会話と参加者の組に対応するメンバーシップを取得する。
func (s *Store) GetMembership(ctx context.Context, conversationID, userID string) (*Membership, error) {
	row, err := s.queries.GetUserConversation(ctx, DeriveID(conversationID, userID).String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &StorageError{Op: "get", Err: ErrMembershipNotFound}
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	m, err := membershipFromRow(row)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	return m, nil
}

// CountMessagesAfter は会話内で messageID のメッセージより後に作成されたメッセージ数を返す。
func (s *Store) CountMessagesAfter(ctx context.Context, conversationID, messageID string) (int64, error) {
	return messageCounter{queries: s.queries}.CountMessagesAfter(ctx, conversationID, messageID)
}

// TotalUnread はユーザーの未読集計。
type TotalUnread struct {
	// Conversation は未読がある会話の数。
	Conversation int64 `json:"conversation"`
	// Message は未読メッセージの合計。
	Message int64 `json:"message"`
}

// TotalUnread はユーザーの未読がある会話数と未読メッセージの合計を返す。
func (s *Store) TotalUnread(ctx context.Context, userID string) (TotalUnread, error) {
	row, err := s.queries.TotalUnread(ctx, userID)
	if err != nil {
		return TotalUnread{}, &StorageError{Op: "total_unread", Err: err}
	}
	return TotalUnread{Conversation: row.ConversationCount, Message: row.MessageCount}, nil
}

// CreateConversation は会話を作成する。
func (s *Store) CreateConversation(ctx context.Context, ownerID, title string) (*Conversation, error) {
	c := &Conversation{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: s.now().UTC(),
	}
	if err := s.queries.CreateConversation(ctx, convdb.CreateConversationParams{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Title:     c.Title,
		CreatedAt: formatTime(c.CreatedAt),
	}); err != nil {
		return nil, &StorageError{Op: "create_conversation", Err: err}
	}
	return c, nil
}

// GetConversation はIDで会話を取得する。
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row, err := s.queries.GetConversation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &StorageError{Op: "get_conversation", Err: ErrConversationNotFound}
	}
	if err != nil {
		return nil, &StorageError{Op: "get_conversation", Err: err}
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, &StorageError{Op: "get_conversation", Err: err}
	}
	return &Conversation{ID: row.ID, OwnerID: row.OwnerID, Title: row.Title, CreatedAt: createdAt}, nil
}

// CreateMessage は会話にメッセージを作成する。
func (s *Store) CreateMessage(ctx context.Context, conversationID, ownerID, body string) (*Message, error) {
	m := &Message{
		ID:             uuid.New().String(),
		OwnerID:        ownerID,
		ConversationID: conversationID,
		Body:           body,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.queries.CreateMessage(ctx, convdb.CreateMessageParams{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		ConversationID: m.ConversationID,
		Body:           m.Body,
		CreatedAt:      formatTime(m.CreatedAt),
	}); err != nil {
		return nil, &StorageError{Op: "create_message", Err: err}
	}
	return m, nil
}

// GetMessage はIDでメッセージを取得する。
func (s *Store) GetMessage(ctx context.Context, id string) (*Message, error) {
	row, err := s.queries.GetMessage(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &StorageError{Op: "get_message", Err: ErrMessageNotFound}
	}
	if err != nil {
		return nil, &StorageError{Op: "get_message", Err: err}
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, &StorageError{Op: "get_message", Err: err}
	}
	return &Message{
		ID:             row.ID,
		OwnerID:        row.OwnerID,
		ConversationID: row.ConversationID,
		Body:           row.Body,
		CreatedAt:      createdAt,
	}, nil
}

// ListParticipants は会話の参加者のユーザーIDを返す。
func (s *Store) ListParticipants(ctx context.Context, conversationID string) ([]string, error) {
	userIDs, err := s.queries.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, &StorageError{Op: "list_participants", Err: err}
	}
	return userIDs, nil
}

// SetChannel はユーザーが購読しているチャンネル名を登録する。
func (s *Store) SetChannel(ctx context.Context, userID, name string) error {
	if err := s.queries.UpsertUserChannel(ctx, convdb.UpsertUserChannelParams{
		UserID:    userID,
		Name:      name,
		UpdatedAt: formatTime(s.now()),
	}); err != nil {
		return &StorageError{Op: "set_channel", Err: err}
	}
	return nil
}

// ResolveChannel はユーザーのチャンネル名を返す。登録が無い場合は空文字列を返す。
func (s *Store) ResolveChannel(ctx context.Context, userID string) (string, error) {
	ch, err := s.queries.GetUserChannel(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Op: "resolve_channel", Err: err}
	}
	return ch.Name, nil
}

// messageCounter は Queries を MessageCounter として扱うアダプタ。
type messageCounter struct {
	queries *convdb.Queries
}

func (c messageCounter) CountMessagesAfter(ctx context.Context, conversationID, messageID string) (int64, error) {
	count, err := c.queries.CountMessagesAfter(ctx, convdb.CountMessagesAfterParams{
		ConversationID: conversationID,
		MessageID:      messageID,
	})
	if err != nil {
		return 0, &StorageError{Op: "count_messages_after", Err: err}
	}
	return count, nil
}

// membershipFromRow はDB行をメンバーシップに変換する。
func membershipFromRow(row convdb.UserConversation) (*Membership, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("メンバーシップIDのパースに失敗: %w", err)
	}
	var access []record.AccessEntry
	if err := json.Unmarshal([]byte(row.Access), &access); err != nil {
		return nil, fmt.Errorf("アクセス制御リストのパースに失敗: %w", err)
	}
	if access == nil {
		access = []record.AccessEntry{}
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("作成日時のパースに失敗: %w", err)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("更新日時のパースに失敗: %w", err)
	}
	return &Membership{
		ID:                id,
		OwnerID:           row.OwnerID,
		Access:            access,
		UserID:            row.UserID,
		ConversationID:    row.ConversationID,
		LastReadMessageID: row.LastReadMessageID.String,
		UnreadCount:       row.UnreadCount,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isPrimaryKeyViolation はエラーが主キーまたは一意制約の違反かどうかを返す。
func isPrimaryKeyViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	default:
		return false
	}
}
