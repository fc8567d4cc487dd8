package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nao1215/teamboard/internal/alarm"
	"github.com/nao1215/teamboard/internal/config"
	"github.com/nao1215/teamboard/internal/metrics"
	"github.com/nao1215/teamboard/internal/stream"
	"github.com/nao1215/teamboard/pkg/event"
	"github.com/nao1215/teamboard/pkg/middleware"
)

// Server はアラームサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	cfg    *config.Config
	log    zerolog.Logger
	// store はアラーム記録の永続化先。
	store *alarm.Store
	// registry はユーザーごとの配信チャネル。
	registry   *stream.Registry
	dispatcher *stream.Dispatcher
	notifier   *Notifier
	// limiter は購読APIのユーザー単位の接続制限。
	limiter  *middleware.UserRateLimiter
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer
}

// NewServer は新しいアラームサーバーを生成する。
// storeはマイグレーション済みである必要がある。
func NewServer(cfg *config.Config, store *alarm.Store, log zerolog.Logger) *Server {
	return newServer(cfg, store, log, middleware.JWTAuth(cfg.Auth.JWTSecret))
}

func newServer(cfg *config.Config, store *alarm.Store, log zerolog.Logger, auth gin.HandlerFunc) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	registry := stream.NewRegistry(cfg.Stream.Timeout, log, m)
	dispatcher := stream.NewDispatcher(registry, log, m)

	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	s := &Server{
		router:     router,
		cfg:        cfg,
		log:        log.With().Str("component", "server").Logger(),
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		notifier:   NewNotifier(store, dispatcher, log, m),
		limiter: middleware.NewUserRateLimiter(cfg.Stream.ConnectRatePerMinute,
			middleware.WithRejectHook(func(string) { m.Connect("rate_limited") })),
		metrics:  m,
		gatherer: reg,
	}
	s.setupRoutes(auth)
	return s
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler { return s.router }

// Notifier は業務処理向けの通知窓口を返す。
func (s *Server) Notifier() *Notifier { return s.notifier }

// Registry は配信チャネルのRegistryを返す。
func (s *Server) Registry() *stream.Registry { return s.registry }

// Limiter は購読APIの接続リミッタを返す。
func (s *Server) Limiter() *middleware.UserRateLimiter { return s.limiter }

// Metrics はメトリクスのCollectorを返す。
func (s *Server) Metrics() *metrics.Collector { return s.metrics }

// Run はHTTPサーバーを起動し、ctxが終わるとグレースフルシャットダウンする。
// シャットダウン時は開いている全ストリームを完了させてから接続の終了を待つ。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// ストリームは長時間書き込み続けるため全体のWriteTimeoutは設けない。
		// 1回の書き込みの期限はsseSinkが設定する。
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("アラームサービスを起動しました")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	closed := s.registry.CloseAll()
	s.log.Info().Int("streams", closed).Msg("シャットダウンを開始します")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	api := s.router.Group("/api/v1")
	api.Use(auth)
	{
		alarms := api.Group("/alarms")
		{
			alarms.GET("", s.handleList())
			alarms.GET("/subscribe", middleware.RateLimitByUser(s.limiter), s.handleSubscribe())
			alarms.DELETE("/:alarmId", s.handleDelete())
		}

		// 業務サービスから呼び出される内部API
		internal := api.Group("/internal")
		{
			internal.POST("/alarms", s.handleCreate())
			internal.DELETE("/posts/:postId/alarms", s.handlePostRemoved())
		}
	}

	s.router.GET("/health", s.handleHealth())
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

// alarmResponse はアラームのJSONレスポンス構造。
type alarmResponse struct {
	ID                string `json:"id"`
	RecipientUsername string `json:"recipientUsername"`
	ActorUsername     string `json:"actorUsername"`
	SubjectPostID     int64  `json:"subjectPostId"`
	Kind              string `json:"kind"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"createdAt"`
}

func (s *Server) toAlarmResponses(records []alarm.Record) []alarmResponse {
	out := make([]alarmResponse, 0, len(records))
	for _, r := range records {
		resp := alarmResponse{
			ID:                r.ID,
			RecipientUsername: r.Recipient,
			SubjectPostID:     r.SubjectPostID,
			Kind:              string(r.Kind),
			CreatedAt:         r.CreatedAt.Format(time.RFC3339),
		}
		if args, err := r.PostArgs(); err == nil {
			resp.ActorUsername = args.ActorUsername
		} else {
			s.log.Warn().Err(err).Str("alarm_id", r.ID).Msg("ペイロードを読み取れません")
		}
		out = append(out, resp)
	}
	return out
}

// handleList は認証済みユーザーのアラーム一覧を新しい順に返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := middleware.GetUsername(c)
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名が取得できません"})
			return
		}

		records, err := s.store.ListByRecipient(c.Request.Context(), username)
		if err != nil {
			s.log.Error().Err(err).Str("username", username).Msg("アラーム一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "アラーム一覧の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, s.toAlarmResponses(records))
	}
}

// handleDelete は指定されたアラームを論理削除するハンドラ。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := middleware.GetUsername(c)
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名が取得できません"})
			return
		}
		ctx := c.Request.Context()
		alarmID := c.Param("alarmId")

		rec, err := s.store.FindByID(ctx, alarmID)
		if errors.Is(err, alarm.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "アラームが見つかりません"})
			return
		}
		if err != nil {
			s.log.Error().Err(err).Str("alarm_id", alarmID).Msg("アラーム取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "アラームの取得に失敗しました"})
			return
		}
		if rec.Recipient != username {
			c.JSON(http.StatusForbidden, gin.H{"error": "このアラームを操作する権限がありません"})
			return
		}

		if err := s.store.SoftDelete(ctx, alarmID); err != nil {
			if errors.Is(err, alarm.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "アラームが見つかりません"})
				return
			}
			s.log.Error().Err(err).Str("alarm_id", alarmID).Msg("アラーム削除エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "アラームの削除に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "アラームを削除しました"})
	}
}

// handleSubscribe はイベントストリームを開き、終了するまでレスポンスを保持するハンドラ。
// 接続直後に "open" イベントを送り、以降は "alarm" イベントでアラームIDを届ける。
func (s *Server) handleSubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := middleware.GetUsername(c)
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名が取得できません"})
			return
		}

		setSSEHeaders(c)
		h, err := s.dispatcher.Connect(username, newSSESink(c, s.cfg.Stream.WriteTimeout))
		if err != nil {
			s.log.Warn().Err(err).Str("username", username).Msg("ストリーム接続エラー")
			if !c.Writer.Written() {
				c.Header("Content-Type", "application/json; charset=utf-8")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ストリームの接続に失敗しました"})
			}
			return
		}

		state := h.Wait(c.Request.Context())
		s.log.Debug().
			Str("username", username).
			Str("handle", h.ID()).
			Stringer("state", state).
			Dur("duration", time.Since(h.CreatedAt())).
			Msg("ストリームを閉じました")
	}
}

// createRequest はアラーム作成リクエストのJSON構造。
type createRequest struct {
	// Recipient は受信者のユーザー名。
	Recipient string `json:"recipient" binding:"required"`
	// Kind はアラーム種別（COMMENT, TEAM_COMMENT, JOIN, WAITING）。
	Kind          string `json:"kind" binding:"required"`
	PostID        int64  `json:"postId"`
	ActorUsername string `json:"actorUsername"`
}

// handleCreate はアラームを記録して配信を試みるハンドラ。
// 配信の成否はレスポンスに影響しない。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		kind, err := event.ParseKind(req.Kind)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rec, err := s.notifier.Notify(c.Request.Context(), req.Recipient, kind, event.PostArgs{
			PostID:        req.PostID,
			ActorUsername: req.ActorUsername,
		})
		if err != nil {
			s.log.Error().Err(err).Str("recipient", req.Recipient).Msg("アラーム作成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "アラームの作成に失敗しました"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": rec.ID})
	}
}

// handlePostRemoved は投稿の削除に伴い、その投稿のアラームを論理削除するハンドラ。
func (s *Server) handlePostRemoved() gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, err := strconv.ParseInt(c.Param("postId"), 10, 64)
		if err != nil || postID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "投稿IDが不正です"})
			return
		}

		n, err := s.notifier.PostRemoved(c.Request.Context(), postID)
		if err != nil {
			s.log.Error().Err(err).Int64("post_id", postID).Msg("投稿アラーム削除エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "アラームの削除に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": n})
	}
}

// handleHealth はDB接続と配信チャネル数を返すハンドラ。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.DB().PingContext(c.Request.Context()); err != nil {
			s.log.Error().Err(err).Msg("ヘルスチェックでDBに接続できません")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "alarm"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"service":  "alarm",
			"channels": s.registry.Len(),
		})
	}
}
