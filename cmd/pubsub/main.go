// Pub/Subサービスのエントリポイント。
// チャンネル単位でWebSocket購読者へ変更イベントを配信する。
package main

import (
	"log"

	"github.com/nao1215/chat/internal/pubsub"
	"github.com/nao1215/chat/pkg/config"
)

func main() {
	var cfg config.PubSub
	if err := config.Load("", &cfg); err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server := pubsub.NewServer(cfg)

	log.Printf("Pub/Subサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("Pub/Subサービスの起動に失敗: %v", err)
	}
}
