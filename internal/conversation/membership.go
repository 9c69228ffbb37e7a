package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Credential は書き込みを行う資格情報。
type Credential struct {
	// UserID は操作を行うユーザーのID。
	UserID string
	// MasterKey はストアへの書き込みを許可するマスターキー。
	MasterKey string
}

// RecordStore はメンバーシップの挿入と削除を行うストレージ。
type RecordStore interface {
	InsertMembership(ctx context.Context, cred Credential, m *Membership) error
	DeleteMembership(ctx context.Context, cred Credential, id uuid.UUID) error
}

// Manager は会話への参加と退出に伴うメンバーシップの作成・削除を行う。
type Manager struct {
	store     RecordStore
	masterKey string
}

// NewManager は新しいManagerを生成する。
func NewManager(store RecordStore, masterKey string) *Manager {
	return &Manager{store: store, masterKey: masterKey}
}

// credentialFor は未指定の項目を補った資格情報を返す。
// ユーザーIDが空なら参加者自身として、マスターキーが空なら設定済みのキーで書き込む。
func (m *Manager) credentialFor(participantID string, cred Credential) Credential {
	if cred.UserID == "" {
		cred.UserID = participantID
	}
	if cred.MasterKey == "" {
		cred.MasterKey = m.masterKey
	}
	return cred
}

// Create は参加者のメンバーシップを作成する。
// すでにメンバーの場合は ErrAlreadyMember を包んだ *StorageError を返す。
func (m *Manager) Create(ctx context.Context, conversationID, participantID string, cred Credential) (*Membership, error) {
	if conversationID == "" || participantID == "" {
		return nil, &InvalidStateError{Reason: "会話IDと参加者IDは必須です"}
	}

	rec := NewMembership(conversationID, participantID)
	if err := m.store.InsertMembership(ctx, m.credentialFor(participantID, cred), rec); err != nil {
		return nil, asStorageError("insert", err)
	}
	return rec, nil
}

// Delete は参加者のメンバーシップを削除する。
// 存在しない場合は ErrMembershipNotFound を包んだ *StorageError を返す。
func (m *Manager) Delete(ctx context.Context, conversationID, participantID string, cred Credential) error {
	if conversationID == "" || participantID == "" {
		return &InvalidStateError{Reason: "会話IDと参加者IDは必須です"}
	}

	id := DeriveID(conversationID, participantID)
	if err := m.store.DeleteMembership(ctx, m.credentialFor(participantID, cred), id); err != nil {
		return asStorageError("delete", err)
	}
	return nil
}

// JoinAll は参加者全員のメンバーシップを作成する。重複したIDは1回だけ処理する。
// すでにメンバーの参加者は参加済みとして扱い、新たに作成したメンバーシップのみを返す。
func (m *Manager) JoinAll(ctx context.Context, conversationID string, participantIDs []string) ([]*Membership, error) {
	participantIDs = lo.Uniq(lo.Compact(participantIDs))

	created := make([]*Membership, 0, len(participantIDs))
	for _, participantID := range participantIDs {
		rec, err := m.Create(ctx, conversationID, participantID, Credential{})
		if errors.Is(err, ErrAlreadyMember) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("参加者 %s のメンバーシップ作成に失敗: %w", participantID, err)
		}
		created = append(created, rec)
	}
	return created, nil
}

// asStorageError はエラーを *StorageError に揃える。
func asStorageError(op string, err error) error {
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
