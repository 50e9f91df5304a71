package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ardaops/kanban_backend/config"
	"github.com/ardaops/kanban_backend/kanban"
	"github.com/ardaops/kanban_backend/middlewares"
	"github.com/ardaops/kanban_backend/models"
	"github.com/ardaops/kanban_backend/utils"
	"github.com/ardaops/kanban_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("kanban-backend")

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// orchestrator builds the lifecycle orchestrator against the live
// connections. Constructed per request; the structs are cheap and the
// Redis lock client may come up after the server starts listening.
func orchestrator(logger *logrus.Logger) *kanban.Orchestrator {
	return kanban.NewOrchestrator(kanban.NewGormStore(config.GetDB()), logger, config.GetRedisLock())
}

// httpStatusFor maps a lifecycle rejection onto an HTTP status.
func httpStatusFor(code kanban.ErrorCode) int {
	switch code {
	case kanban.CodeCardNotFound:
		return http.StatusNotFound
	case kanban.CodeTenantMismatch, kanban.CodeRoleNotAllowed:
		return http.StatusForbidden
	case kanban.CodeScanConflict, kanban.CodeScanDuplicate:
		return http.StatusConflict
	case kanban.CodeCardDeactivated, kanban.CodeInvalidTransition,
		kanban.CodeLoopTypeIncompatible, kanban.CodeMethodNotAllowed,
		kanban.CodeMissingLinkedOrder:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondLifecycleError(c *gin.Context, err error) {
	code := kanban.CodeOf(err)
	c.JSON(httpStatusFor(code), gin.H{"code": code, "error": err.Error()})
}

func callerIdentity(ctx context.Context) (businessId string, userId *int, role models.UserRole) {
	businessId, _ = utils.GetBusinessIdFromContext(ctx)
	if id, ok := utils.GetUserIdFromContext(ctx); ok {
		userId = &id
	}
	if r, ok := utils.GetUserRoleFromContext(ctx); ok {
		role = models.UserRole(r)
	}
	return businessId, userId, role
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		token, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

type scanRequest struct {
	CardId         int      `json:"card_id" binding:"required"`
	IdempotencyKey *string  `json:"idempotency_key"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
}

func scanHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "kanban.scan")
		defer span.End()

		var req scanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		businessId, userId, role := callerIdentity(ctx)

		var metadata map[string]any
		if req.Latitude != nil && req.Longitude != nil {
			metadata = map[string]any{"latitude": *req.Latitude, "longitude": *req.Longitude}
		}

		result, err := orchestrator(logger).TriggerCardByScan(ctx, &kanban.ScanInput{
			BusinessId:     businessId,
			CardId:         req.CardId,
			UserId:         userId,
			Role:           role,
			IdempotencyKey: req.IdempotencyKey,
			Metadata:       metadata,
		})
		if err != nil {
			respondLifecycleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"card":      result.Card,
			"loop_type": result.LoopType,
			"part_id":   result.PartId,
			"message":   result.Message,
			"replayed":  result.Replayed,
		})
	}
}

type scanReplayRequest struct {
	Items []kanban.ScanReplayItem `json:"items"`
}

func scanReplayHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "kanban.scanReplay")
		defer span.End()

		var req scanReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		businessId, userId, role := callerIdentity(ctx)

		results := orchestrator(logger).ReplayScans(ctx, businessId, userId, role, req.Items)
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

type transitionRequest struct {
	TargetStage     models.CardStage         `json:"target_stage" binding:"required"`
	Method          *models.TransitionMethod `json:"method"`
	Notes           *string                  `json:"notes"`
	Metadata        map[string]any           `json:"metadata"`
	LinkedOrderId   *int                     `json:"linked_order_id"`
	LinkedOrderType *models.LinkedOrderType  `json:"linked_order_type"`
	IdempotencyKey  *string                  `json:"idempotency_key"`
}

func transitionHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "kanban.transition")
		defer span.End()

		cardId, err := strconv.Atoi(c.Param("id"))
		if err != nil || cardId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card id"})
			return
		}
		var req transitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !req.TargetStage.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown stage %q", req.TargetStage)})
			return
		}
		method := models.TransitionMethodManual
		if req.Method != nil {
			method = *req.Method
		}
		businessId, userId, role := callerIdentity(ctx)

		result, err := orchestrator(logger).TransitionCard(ctx, &kanban.TransitionInput{
			BusinessId:      businessId,
			CardId:          cardId,
			TargetStage:     req.TargetStage,
			UserId:          userId,
			Role:            role,
			Method:          method,
			Notes:           req.Notes,
			Metadata:        req.Metadata,
			LinkedOrderId:   req.LinkedOrderId,
			LinkedOrderType: req.LinkedOrderType,
			IdempotencyKey:  req.IdempotencyKey,
		})
		if err != nil {
			respondLifecycleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"card":           result.Card,
			"transition":     result.Transition,
			"correlation_id": result.EventCorrelationId,
			"replayed":       result.Replayed,
		})
	}
}

func transitionHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cardId, err := strconv.Atoi(c.Param("id"))
		if err != nil || cardId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card id"})
			return
		}
		limit := config.SearchLimit
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		offset := 0
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}
		businessId, _, _ := callerIdentity(c.Request.Context())
		if err := utils.ValidateResourceId[models.KanbanCard](c.Request.Context(), businessId, cardId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		transitions, err := models.ListCardTransitions(c.Request.Context(), businessId, cardId, limit, offset)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"transitions": transitions})
	}
}

func getCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card id"})
			return
		}
		card, err := models.GetKanbanCard(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
			return
		}
		c.JSON(http.StatusOK, card)
	}
}

func businessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, _, _ := callerIdentity(c.Request.Context())
		business, err := models.GetBusinessById(c.Request.Context(), businessId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "business not found"})
			return
		}
		c.JSON(http.StatusOK, business)
	}
}

func createLoopHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewKanbanLoop
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		loop, err := models.CreateKanbanLoop(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, loop)
	}
}

func listLoopsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		loops, err := models.ListKanbanLoops(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"loops": loops})
	}
}

func loopIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loop id"})
		return 0, false
	}
	return id, true
}

func getLoopHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := loopIdParam(c)
		if !ok {
			return
		}
		loop, err := models.GetKanbanLoop(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "loop not found"})
			return
		}
		c.JSON(http.StatusOK, loop)
	}
}

func updateLoopHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := loopIdParam(c)
		if !ok {
			return
		}
		var input models.UpdateKanbanLoopInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		loop, err := models.UpdateKanbanLoop(c.Request.Context(), id, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, loop)
	}
}

type toggleActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func toggleLoopActiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := loopIdParam(c)
		if !ok {
			return
		}
		var req toggleActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
			return
		}
		loop, err := models.ToggleActiveKanbanLoop(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, loop)
	}
}

func cardPolicyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := loopIdParam(c)
		if !ok {
			return
		}
		var input models.CardPolicyChangeInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		loop, err := models.UpdateLoopCardPolicy(c.Request.Context(), id, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, loop)
	}
}

func loopQuantityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := loopIdParam(c)
		if !ok {
			return
		}
		state, err := models.GetLoopQuantityState(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func loopCardsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := loopIdParam(c)
		if !ok {
			return
		}
		cards, err := models.ListCardsByLoop(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"cards": cards})
	}
}

func loopStageSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := loopIdParam(c)
		if !ok {
			return
		}
		summary, err := models.GetLoopStageSummary(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stage_counts": summary})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := redis.NewClient(&redis.Options{Addr: os.Getenv("REDIS_ADDRESS")})
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/auth/login", loginHandler())

	api := r.Group("/kanban", middlewares.RequireAuth())
	api.POST("/scan", scanHandler(logger))
	api.POST("/scan/replay", scanReplayHandler(logger))
	api.GET("/business", businessHandler())
	api.GET("/cards/:id", getCardHandler())
	api.POST("/cards/:id/transition", transitionHandler(logger))
	api.GET("/cards/:id/transitions", transitionHistoryHandler())
	api.POST("/loops", createLoopHandler())
	api.GET("/loops", listLoopsHandler())
	api.GET("/loops/:id", getLoopHandler())
	api.PUT("/loops/:id", updateLoopHandler())
	api.POST("/loops/:id/toggle-active", toggleLoopActiveHandler())
	api.PUT("/loops/:id/card-policy", cardPolicyHandler())
	api.GET("/loops/:id/quantity", loopQuantityHandler())
	api.GET("/loops/:id/cards", loopCardsHandler())
	api.GET("/loops/:id/stage-summary", loopStageSummaryHandler())

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start outbox dispatcher (publishes AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if !config.OutboxDispatcherDisabled() {
		if strings.EqualFold(strings.TrimSpace(os.Getenv("PUBSUB_AUTO_PROVISION")), "true") {
			go provisionPubSub(dispatcherCtx, logger)
		}
		go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while draining.
	cancelDispatcher()

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// provisionPubSub creates the lifecycle topic, and the subscription when
// LIFECYCLE_SUBSCRIPTION is set. Gated behind PUBSUB_AUTO_PROVISION for
// local and CI environments.
func provisionPubSub(ctx context.Context, logger *logrus.Logger) {
	client, err := config.GetClient(ctx)
	if err != nil {
		config.LogError(logger, "server", "provisionPubSub", "get pubsub client", nil, err)
		return
	}

	topicName := os.Getenv("LIFECYCLE_TOPIC")
	topic, err := config.CreateTopicIfNotExists(client, topicName)
	if err != nil {
		config.LogError(logger, "server", "provisionPubSub", "create topic", topicName, err)
		return
	}

	subName := os.Getenv("LIFECYCLE_SUBSCRIPTION")
	if subName == "" {
		return
	}
	if _, err := config.CreateSubscriptionIfNotExists(client, subName, topic); err != nil {
		config.LogError(logger, "server", "provisionPubSub", "create subscription", subName, err)
	}
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
