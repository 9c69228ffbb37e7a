// Package middleware は会話サービスとPub/Subサービスが共有するGinミドルウェア。
//
// エンドユーザー向けAPIは JWTAuth で現在のユーザーを解決し、
// サービス間のpublishは APIKeyAuth でアプリケーション資格情報を検証する。
package middleware
