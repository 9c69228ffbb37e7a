package conversation

import "context"

// MessageCounter はメッセージ履歴の順序に基づく件数クエリを実行する。
type MessageCounter interface {
	// CountMessagesAfter は会話内で messageID のメッセージより後に作成されたメッセージ数を返す。
	CountMessagesAfter(ctx context.Context, conversationID, messageID string) (int64, error)
}

// BeforeSaveHook はメンバーシップの保存直前に呼ばれるフック。
// orig は保存前のレコードで、新規作成時はnil。返したレコードが保存される。
// エラーを返すと書き込み全体が中止される。
type BeforeSaveHook func(ctx context.Context, q MessageCounter, rec, orig *Membership) (*Membership, error)

// PopulateUnreadCount は既読位置が変わったメンバーシップの未読数を再計算する。
//
// 新規作成、既読位置が変わらない更新、既読位置が未設定の更新では何もしない。
// 既読メッセージが存在しない場合は比較対象の日時がNULLになり、未読数は0になる。
func PopulateUnreadCount(ctx context.Context, q MessageCounter, rec, orig *Membership) (*Membership, error) {
	if rec == nil {
		return nil, &InvalidStateError{Reason: "保存対象のメンバーシップがnilです"}
	}
	if orig == nil {
		return rec, nil
	}
	if rec.LastReadMessageID == orig.LastReadMessageID {
		return rec, nil
	}
	if rec.LastReadMessageID == "" {
		return rec, nil
	}
	if rec.ConversationID == "" {
		return nil, &InvalidStateError{Reason: "会話IDが未設定のため未読数を計算できません"}
	}

	count, err := q.CountMessagesAfter(ctx, rec.ConversationID, rec.LastReadMessageID)
	if err != nil {
		return nil, asStorageError("count_unread", err)
	}
	rec.UnreadCount = count
	return rec, nil
}
