// Package httpclient はJSONを送受信するサービス間HTTPクライアント。
//
// 会話サービスがPub/Subサービスへ変更イベントをpublishする際に使う。
// 2xx以外の応答は *StatusError として返す。
package httpclient
