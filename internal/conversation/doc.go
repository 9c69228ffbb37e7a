// Package conversation は会話サービスを実装する。
//
// 会話と参加者の組ごとにメンバーシップレコード（user_conversation）を管理し、
// 既読位置が変わったときに未読数を再計算する。レコードの変更は参加者ごとの
// Pub/Subチャンネルへ変更イベントとしてベストエフォートで配信する。
//
// 主な構成要素:
//   - DeriveID: (会話ID, 参加者ID) からメンバーシップIDを導出する
//   - Manager: メンバーシップの作成と削除
//   - PopulateUnreadCount: 保存前フックとして未読数を再計算する
//   - Notifier / Dispatcher: 変更イベントの配信
//   - Store: SQLiteを使ったレコードストア
package conversation
