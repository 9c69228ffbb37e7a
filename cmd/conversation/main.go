// 会話サービスのエントリポイント。
// 会話ごとのメンバーシップと未読数を管理し、変更をPub/Subサービスへ通知する。
package main

import (
	"log"

	"github.com/nao1215/chat/internal/conversation"
	"github.com/nao1215/chat/pkg/config"
)

func main() {
	var cfg config.Conversation
	if err := config.Load("", &cfg); err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := conversation.NewServer(cfg)
	if err != nil {
		log.Fatalf("会話サーバーの初期化に失敗: %v", err)
	}
	defer server.Shutdown()

	log.Printf("会話サービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Printf("会話サービスの起動に失敗: %v", err)
	}
}
