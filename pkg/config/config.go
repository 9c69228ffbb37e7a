// Package config は各サービスの設定を環境変数から読み込む。
//
// カレントディレクトリに .env があれば先に読み込み、既存の環境変数を
// 上書きせずに補完する。値が無い項目には開発用のデフォルト値が使われる。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Conversation は会話サービスの設定。
type Conversation struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `envconfig:"PORT" default:"8081"`
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string `envconfig:"DATABASE_PATH" default:"/data/conversation.db"`
	// JWTSecret はユーザートークンの検証に使用するシークレット。
	JWTSecret string `envconfig:"JWT_SECRET" default:"dev-secret-key"`
	// MasterKey はレコードストアへの書き込みに使用する特権資格情報。
	MasterKey string `envconfig:"MASTER_KEY" default:"dev-master-key"`
	// APIKey はPub/Subサービスへのpublishに使用するアプリケーション資格情報。
	APIKey string `envconfig:"API_KEY" default:"dev-api-key"`
	// PubSubURL はPub/SubサービスのベースURL。
	PubSubURL string `envconfig:"PUBSUB_URL" default:"http://localhost:8085"`
	// PublishTimeout は1回の変更通知に許容する時間。
	PublishTimeout time.Duration `envconfig:"PUBLISH_TIMEOUT" default:"5s"`
	// AllowedOrigins はCORSで許可するオリジン（カンマ区切り）。
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// PubSub はPub/Subサービスの設定。
type PubSub struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `envconfig:"PORT" default:"8085"`
	// APIKey はpublishを許可するアプリケーション資格情報。
	APIKey string `envconfig:"API_KEY" default:"dev-api-key"`
	// SubscriberBuffer は購読者ごとの送信バッファ数。
	SubscriberBuffer int `envconfig:"SUBSCRIBER_BUFFER" default:"64"`
	// PingInterval はWebSocketのPing送信間隔。
	PingInterval time.Duration `envconfig:"PING_INTERVAL" default:"10s"`
	// PongTimeout はPongを待つ最大時間。超えると接続を切断する。
	PongTimeout time.Duration `envconfig:"PONG_TIMEOUT" default:"15s"`
}

// Validate は会話サービスの設定値を検証する。
func (c Conversation) Validate() error {
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("PUBLISH_TIMEOUT は正の値である必要があります: %s", c.PublishTimeout)
	}
	if c.MasterKey == "" {
		return errors.New("MASTER_KEY が空です")
	}
	return nil
}

// Validate はPub/Subサービスの設定値を検証する。
func (c PubSub) Validate() error {
	if c.SubscriberBuffer <= 0 {
		return fmt.Errorf("SUBSCRIBER_BUFFER は正の値である必要があります: %d", c.SubscriberBuffer)
	}
	if c.PongTimeout <= c.PingInterval {
		return fmt.Errorf("PONG_TIMEOUT (%s) は PING_INTERVAL (%s) より長くする必要があります", c.PongTimeout, c.PingInterval)
	}
	if c.APIKey == "" {
		return errors.New("API_KEY が空です")
	}
	return nil
}

// validator は読み込み後に検証できる設定。
type validator interface {
	Validate() error
}

// Load は .env を読み込んだ上で環境変数をcfgに展開し、検証する。
// prefixが空でない場合は "PREFIX_PORT" のように接頭辞付きの変数名を参照する。
func Load(prefix string, cfg validator) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".envの読み込みに失敗: %w", err)
	}
	if err := envconfig.Process(prefix, cfg); err != nil {
		return fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定値が不正です: %w", err)
	}
	return nil
}
