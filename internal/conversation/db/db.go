// Package db は会話ストアのSQLiteクエリを提供する。
// 型付きのパラメータ構造体とクエリメソッドで構成し、
// *sql.DB と *sql.Tx のどちらでも同じクエリを実行できる。
package db

import (
	"context"
	"database/sql"
)

// DBTX は *sql.DB と *sql.Tx に共通するクエリ実行インターフェース。
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// New は新しいQueriesを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries は会話ストアのクエリ実行オブジェクト。
type Queries struct {
	db DBTX
}

// WithTx はトランザクション内でクエリを実行するQueriesを返す。
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
