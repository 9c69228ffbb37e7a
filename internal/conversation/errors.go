package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyMember は参加者がすでに会話のメンバーである場合のエラー。
	ErrAlreadyMember = errors.New("すでに会話のメンバーです")
	// ErrMembershipNotFound はメンバーシップが存在しない場合のエラー。
	ErrMembershipNotFound = errors.New("メンバーシップが見つかりません")
	// ErrForbidden は資格情報が拒否された場合のエラー。
	ErrForbidden = errors.New("資格情報が無効です")
	// ErrConversationNotFound は会話が存在しない場合のエラー。
	ErrConversationNotFound = errors.New("会話が見つかりません")
	// ErrMessageNotFound はメッセージが存在しない場合のエラー。
	ErrMessageNotFound = errors.New("メッセージが見つかりません")
	// ErrNotMember は操作したユーザーが会話のメンバーでない場合のエラー。
	ErrNotMember = errors.New("会話のメンバーではありません")
)

// StorageError はレコードストアの挿入・削除・クエリの失敗を表す。
type StorageError struct {
	// Op は失敗した操作名。
	Op string
	// Err は元のエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *StorageError) Error() string {
	return fmt.Sprintf("ストレージ操作 %s に失敗: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NotificationError はチャンネル解決やPub/Subへの配信の失敗を表す。
type NotificationError struct {
	// Op は失敗した操作名。
	Op string
	// Channel は配信先チャンネル。解決前の失敗では空。
	Channel string
	// Err は元のエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *NotificationError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("通知操作 %s に失敗: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("通知操作 %s に失敗 (channel=%s): %v", e.Op, e.Channel, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *NotificationError) Unwrap() error {
	return e.Err
}

// InvalidStateError は入力の組み合わせが不整合な場合のエラー。
type InvalidStateError struct {
	// Reason は不整合の内容。
	Reason string
}

// Error はエラーメッセージを返す。
func (e *InvalidStateError) Error() string {
	return "不正な状態です: " + e.Reason
}
