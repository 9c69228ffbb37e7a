package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/chat/pkg/config"
	"github.com/nao1215/chat/pkg/event"
	"github.com/nao1215/chat/pkg/middleware"
	"github.com/nao1215/chat/pkg/record"
	_ "modernc.org/sqlite"
)

// Server は会話サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store はレコードストア。
	store *Store
	// members はメンバーシップの作成・削除を行う。
	members *Manager
	// dispatcher は変更イベントを非同期に配信する。
	dispatcher *Dispatcher
	// masterKey はレコードストアへの書き込みに使う資格情報。
	masterKey string
}

// NewServer は新しい会話サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(cfg config.Conversation) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", databaseDSN(cfg.DatabasePath))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(context.Background(), sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	publisher := NewHubPublisher(cfg.PubSubURL, cfg.APIKey, cfg.PublishTimeout)
	s := newServer(sqlDB, cfg.Port, cfg.MasterKey, publisher, cfg.PublishTimeout)
	s.router.Use(middleware.Recovery())
	s.router.Use(gin.Logger())
	s.router.Use(middleware.CORS(cfg.AllowedOrigins))
	s.setupRoutes(middleware.JWTAuth(cfg.JWTSecret))

	return s, nil
}

// databaseDSN はSQLiteファイルの接続文字列を返す。
// 書き込みトランザクションは開始時点で書き込みロックを取得する（BEGIN IMMEDIATE）。
// 読み取り後にロックを昇格させるとWALでは待機せずSQLITE_BUSYになるため。
func databaseDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
}

// newServer はルーティング設定前のサーバーを組み立てる。
// メンバーシップの保存前フックとして未読数の再計算を登録する。
func newServer(sqlDB *sql.DB, port, masterKey string, publisher Publisher, publishTimeout time.Duration) *Server {
	store := NewStore(sqlDB, masterKey)
	store.RegisterBeforeSave(PopulateUnreadCount)

	return &Server{
		router:     gin.New(),
		port:       port,
		db:         sqlDB,
		store:      store,
		members:    NewManager(store, masterKey),
		dispatcher: NewDispatcher(NewNotifier(store, publisher), publishTimeout),
		masterKey:  masterKey,
	}
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Shutdown はサーバーを停止する。
// 配信中の変更イベントを待ってからデータベース接続をクローズする。
func (s *Server) Shutdown() {
	s.dispatcher.Wait()
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Printf("データベースのクローズに失敗: %v", err)
		}
	}
}

// setupRoutes はAPIルーティングを設定する。authは現在のユーザーを解決するミドルウェア。
func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	api := s.router.Group("/api/v1")
	api.Use(auth)
	{
		conversations := api.Group("/conversations")
		{
			// 会話作成
			conversations.POST("", s.handleCreateConversation())
			// 会話への参加
			conversations.POST("/:id/participants", s.handleJoin())
			// 会話からの退出
			conversations.DELETE("/:id/participants/:user_id", s.handleLeave())
			// メッセージ送信
			conversations.POST("/:id/messages", s.handleCreateMessage())
			// 既読位置の更新
			conversations.PUT("/:id/read", s.handleMarkRead())
			// 自分のメンバーシップ取得
			conversations.GET("/:id/membership", s.handleGetMembership())
		}
		// 未読集計
		api.GET("/unread", s.handleTotalUnread())
		// 購読チャンネルの登録
		api.PUT("/channel", s.handleSetChannel())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "conversation"})
	})
}

// createConversationRequest は会話作成リクエストのJSON構造。
type createConversationRequest struct {
	// Title は会話のタイトル。
	Title string `json:"title"`
	// ParticipantIDs は作成者以外の参加者のユーザーID。
	ParticipantIDs []string `json:"participant_ids"`
}

// joinRequest は参加リクエストのJSON構造。
type joinRequest struct {
	// UserID は参加させるユーザーのID。省略時は現在のユーザー。
	UserID string `json:"user_id"`
}

// createMessageRequest はメッセージ送信リクエストのJSON構造。
type createMessageRequest struct {
	// Body はメッセージ本文。
	Body string `json:"body" binding:"required"`
}

// markReadRequest は既読位置更新リクエストのJSON構造。
type markReadRequest struct {
	// MessageID は最後に読んだメッセージのID。
	MessageID string `json:"message_id" binding:"required"`
}

// setChannelRequest はチャンネル登録リクエストのJSON構造。
type setChannelRequest struct {
	// Name は購読しているチャンネル名。
	Name string `json:"name" binding:"required"`
}

// conversationResponse は会話のJSONレスポンス構造。
type conversationResponse struct {
	ID             string   `json:"id"`
	OwnerID        string   `json:"owner_id"`
	Title          string   `json:"title"`
	ParticipantIDs []string `json:"participant_ids"`
	CreatedAt      string   `json:"created_at"`
}

// messageResponse はメッセージのJSONレスポンス構造。
type messageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Body           string `json:"body"`
	CreatedAt      string `json:"created_at"`
}

// membershipResponse はメンバーシップのJSONレスポンス構造。
type membershipResponse struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	ConversationID    string `json:"conversation_id"`
	LastReadMessageID string `json:"last_read_message_id,omitempty"`
	UnreadCount       int64  `json:"unread_count"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

func toMessageResponse(m *Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.OwnerID,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toMembershipResponse(m *Membership) membershipResponse {
	return membershipResponse{
		ID:                m.ID.String(),
		UserID:            m.UserID,
		ConversationID:    m.ConversationID,
		LastReadMessageID: m.LastReadMessageID,
		UnreadCount:       m.UnreadCount,
		CreatedAt:         m.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:         m.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// respondError はエラーの種類に応じたステータスでレスポンスを返す。
// 想定外のエラーはログに記録し、fallbackのメッセージを返す。
func respondError(c *gin.Context, err error, fallback string) {
	var invalid *InvalidStateError
	switch {
	case errors.Is(err, ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": ErrAlreadyMember.Error()})
	case errors.Is(err, ErrMembershipNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrMembershipNotFound.Error()})
	case errors.Is(err, ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrConversationNotFound.Error()})
	case errors.Is(err, ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": ErrNotMember.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": ErrForbidden.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
		log.Printf("%s: %v", fallback, err)
	}
}

// requireMember は会話が存在し、ユーザーがそのメンバーであることを確認する。
func (s *Server) requireMember(ctx context.Context, conversationID, userID string) error {
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return err
	}
	if _, err := s.store.GetMembership(ctx, conversationID, userID); err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			return ErrNotMember
		}
		return err
	}
	return nil
}

// handleCreateConversation は会話作成を処理するハンドラを返す。
// 作成者と指定された参加者のメンバーシップを作成し、各参加者に通知する。
func (s *Server) handleCreateConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req createConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		conv, err := s.store.CreateConversation(ctx, userID, req.Title)
		if err != nil {
			respondError(c, err, "会話の作成に失敗しました")
			return
		}

		// JoinAllが失敗しても作成済みの会話は残る。参加者のいない会話は
		// 誰の一覧にも現れず、再試行は新しい会話として作成される。
		if _, err := s.members.JoinAll(ctx, conv.ID, append([]string{userID}, req.ParticipantIDs...)); err != nil {
			respondError(c, err, "参加者の登録に失敗しました")
			return
		}

		participants, err := s.store.ListParticipants(ctx, conv.ID)
		if err != nil {
			respondError(c, err, "参加者一覧の取得に失敗しました")
			return
		}

		s.dispatcher.Go(participants, event.RecordTypeConversation, event.TypeCreate, conv, nil)

		c.JSON(http.StatusCreated, conversationResponse{
			ID:             conv.ID,
			OwnerID:        conv.OwnerID,
			Title:          conv.Title,
			ParticipantIDs: participants,
			CreatedAt:      conv.CreatedAt.Format(time.RFC3339Nano),
		})
	}
}

// handleJoin は会話への参加を処理するハンドラを返す。
// 他のユーザーを参加させる場合は、現在のユーザーが会話のメンバーである必要がある。
func (s *Server) handleJoin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req joinRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		participantID := req.UserID
		if participantID == "" {
			participantID = userID
		}

		ctx := c.Request.Context()
		conversationID := c.Param("id")
		if participantID != userID {
			if err := s.requireMember(ctx, conversationID, userID); err != nil {
				respondError(c, err, "メンバーシップの確認に失敗しました")
				return
			}
		} else if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
			respondError(c, err, "会話の取得に失敗しました")
			return
		}

		membership, err := s.members.Create(ctx, conversationID, participantID, Credential{})
		if err != nil {
			respondError(c, err, "会話への参加に失敗しました")
			return
		}

		s.dispatcher.Go([]string{participantID}, event.RecordTypeUserConversation, event.TypeCreate, membership, nil)

		c.JSON(http.StatusCreated, toMembershipResponse(membership))
	}
}

// handleLeave は会話からの退出を処理するハンドラを返す。
// 本人以外を退出させる場合は、現在のユーザーが会話のメンバーである必要がある。
func (s *Server) handleLeave() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		ctx := c.Request.Context()
		conversationID := c.Param("id")
		participantID := c.Param("user_id")
		if participantID != userID {
			if err := s.requireMember(ctx, conversationID, userID); err != nil {
				respondError(c, err, "メンバーシップの確認に失敗しました")
				return
			}
		}

		membership, err := s.store.GetMembership(ctx, conversationID, participantID)
		if err != nil {
			respondError(c, err, "メンバーシップの取得に失敗しました")
			return
		}

		if err := s.members.Delete(ctx, conversationID, participantID, Credential{}); err != nil {
			respondError(c, err, "会話からの退出に失敗しました")
			return
		}

		s.dispatcher.Go([]string{participantID}, event.RecordTypeUserConversation, event.TypeDelete, membership, nil)

		c.Status(http.StatusNoContent)
	}
}

// handleCreateMessage はメッセージ送信を処理するハンドラを返す。
// 送信者は会話のメンバーである必要があり、保存後に全参加者へ通知する。
func (s *Server) handleCreateMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req createMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		conversationID := c.Param("id")
		if err := s.requireMember(ctx, conversationID, userID); err != nil {
			respondError(c, err, "メンバーシップの確認に失敗しました")
			return
		}

		msg, err := s.store.CreateMessage(ctx, conversationID, userID, req.Body)
		if err != nil {
			respondError(c, err, "メッセージの作成に失敗しました")
			return
		}

		participants, err := s.store.ListParticipants(ctx, conversationID)
		if err != nil {
			// メッセージは保存済みのため、通知できなくても成功として返す
			log.Printf("[Notifier] 参加者一覧の取得に失敗: conversation=%s: %v", conversationID, err)
		} else {
			s.dispatcher.Go(participants, event.RecordTypeMessage, event.TypeCreate, msg, nil)
		}

		c.JSON(http.StatusCreated, toMessageResponse(msg))
	}
}

// handleMarkRead は既読位置の更新を処理するハンドラを返す。
// 保存前フックが未読数を再計算し、更新後のメンバーシップを本人に通知する。
func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req markReadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		conversationID := c.Param("id")
		current, err := s.store.GetMembership(ctx, conversationID, userID)
		if err != nil {
			respondError(c, err, "メンバーシップの取得に失敗しました")
			return
		}

		msg, err := s.store.GetMessage(ctx, req.MessageID)
		if errors.Is(err, ErrMessageNotFound) || (err == nil && msg.ConversationID != conversationID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "指定されたメッセージはこの会話に存在しません"})
			return
		}
		if err != nil {
			respondError(c, err, "メッセージの取得に失敗しました")
			return
		}

		current.LastReadMessageID = msg.ID
		saved, orig, err := s.store.SaveMembership(ctx, Credential{UserID: userID, MasterKey: s.masterKey}, current)
		if err != nil {
			respondError(c, err, "既読位置の更新に失敗しました")
			return
		}

		s.dispatcher.Go([]string{userID}, event.RecordTypeUserConversation, event.TypeUpdate, saved, orig)

		c.JSON(http.StatusOK, toMembershipResponse(saved))
	}
}

// handleGetMembership は現在のユーザーのメンバーシップをレコード形式で返すハンドラを返す。
func (s *Server) handleGetMembership() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		membership, err := s.store.GetMembership(c.Request.Context(), c.Param("id"), userID)
		if err != nil {
			respondError(c, err, "メンバーシップの取得に失敗しました")
			return
		}

		data, err := record.Serialize(membership)
		if err != nil {
			respondError(c, err, "メンバーシップのシリアライズに失敗しました")
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
	}
}

// handleTotalUnread は現在のユーザーの未読集計を返すハンドラを返す。
func (s *Server) handleTotalUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		total, err := s.store.TotalUnread(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err, "未読数の集計に失敗しました")
			return
		}

		c.JSON(http.StatusOK, total)
	}
}

// handleSetChannel は現在のユーザーの購読チャンネルを登録するハンドラを返す。
func (s *Server) handleSetChannel() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req setChannelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if err := s.store.SetChannel(c.Request.Context(), userID, req.Name); err != nil {
			respondError(c, err, "チャンネルの登録に失敗しました")
			return
		}

		c.JSON(http.StatusOK, gin.H{"user_id": userID, "channel": req.Name})
	}
}
