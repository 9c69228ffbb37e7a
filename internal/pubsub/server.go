package pubsub

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nao1215/chat/pkg/config"
	"github.com/nao1215/chat/pkg/middleware"
)

// writeTimeout は1回のWebSocket書き込みに許容する時間。
const writeTimeout = 10 * time.Second

// Server はPub/SubサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// hub はチャンネルの購読者を管理する。
	hub *Hub
	// upgrader はHTTP接続をWebSocketに切り替える。
	upgrader websocket.Upgrader
	// pingInterval はPingの送信間隔。
	pingInterval time.Duration
	// pongTimeout はPongを待つ最大時間。
	pongTimeout time.Duration
}

// NewServer は新しいPub/Subサーバーを生成する。
func NewServer(cfg config.PubSub) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := newServer(router, cfg)
	s.setupRoutes(cfg.APIKey)
	return s
}

func newServer(router *gin.Engine, cfg config.PubSub) *Server {
	return &Server{
		router: router,
		port:   cfg.Port,
		hub:    NewHub(cfg.SubscriberBuffer),
		upgrader: websocket.Upgrader{
			// 購読はチャンネル名を知っているクライアントに限られるため、オリジンは問わない
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
	}
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(apiKey string) {
	api := s.router.Group("/api/v1")
	api.Use(middleware.APIKeyAuth(apiKey))
	{
		// チャンネルへの配信
		api.POST("/publish", s.handlePublish())
	}

	// WebSocketによる購読
	s.router.GET("/ws", s.handleSubscribe())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "pubsub"})
	})
}

// publishRequest は配信リクエストのJSON構造。
type publishRequest struct {
	// Channel は配信先のチャンネル名。
	Channel string `json:"channel" binding:"required"`
	// Data は購読者にそのまま届けるペイロード。
	Data json.RawMessage `json:"data" binding:"required"`
}

// handlePublish はチャンネルへの配信を処理するハンドラを返す。
// 購読者への送信はバッファに積むだけで、届いたかどうかは待たない。
func (s *Server) handlePublish() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req publishRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		delivered := s.hub.Publish(req.Channel, req.Data)
		c.JSON(http.StatusAccepted, gin.H{"channel": req.Channel, "delivered": delivered})
	}
}

// handleSubscribe はWebSocketでの購読を処理するハンドラを返す。
func (s *Server) handleSubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		channel := c.Query("channel")
		if channel == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "channelパラメータが必要です"})
			return
		}

		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[PubSub] WebSocketへの切り替えに失敗: %v", err)
			return
		}

		sub := s.hub.Subscribe(channel)
		log.Printf("[PubSub] 購読を開始: channel=%s", channel)

		go s.writePump(conn, sub)
		s.readPump(conn, sub)
	}
}

// readPump はクライアントからの受信を処理する。
// Pongを受け取るたびに読み取り期限を延長し、切断されたら購読を解除する。
func (s *Server) readPump(conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		s.hub.Unsubscribe(sub)
		_ = conn.Close()
		log.Printf("[PubSub] 購読を終了: channel=%s", sub.Channel())
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	for {
		// 購読専用のためクライアントからのメッセージは読み捨てる
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump は配信されたペイロードとPingをクライアントへ送信する。
func (s *Server) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[PubSub] 送信に失敗: channel=%s: %v", sub.Channel(), err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
