package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/config"
	"bitbucket.org/mmdatafocus/grocery_backend/engine"
	"bitbucket.org/mmdatafocus/grocery_backend/models"
	"bitbucket.org/mmdatafocus/grocery_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("grocery-backend")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// paymentResultMessage is the provider callback payload relayed through Pub/Sub.
type paymentResultMessage struct {
	TransactionRef string `json:"transaction_ref"`
	Success        bool   `json:"success"`
	CorrelationId  string `json:"correlation_id"`
}

type engines struct {
	orders        *engine.OrderEngine
	subscriptions *engine.SubscriptionEngine
}

var (
	enginesOnce sync.Once
	enginesInst *engines
)

// getEngines builds the engine graph on first use. The readiness middleware
// guarantees the DB is connected before any handler reaches this.
func getEngines() *engines {
	enginesOnce.Do(func() {
		logger := config.GetLogger()
		db := config.GetDB()
		loc := utils.OperatorTimezone()
		calendar := engine.CalendarFromEnv(loc)
		clock := engine.SystemClock()

		orderStore := &models.GormOrderStore{DB: db}
		subscriptionStore := &models.GormSubscriptionStore{DB: db}
		catalog := &models.GormCatalog{DB: db}
		customers := &models.GormCustomerDirectory{DB: db}
		audit := &models.GormAuditLog{DB: db}
		dispatcher := &engine.PubSubDispatcher{
			Topic:  config.DeliveryDispatchTopic(),
			Logger: logger,
		}

		orders := engine.NewOrderEngine(orderStore, catalog, customers, dispatcher, audit, calendar, clock, logger)
		subscriptions := engine.NewSubscriptionEngine(subscriptionStore, orders, catalog, customers, calendar, clock, audit, logger)
		enginesInst = &engines{orders: orders, subscriptions: subscriptions}
	})
	return enginesInst
}

// jsonError maps engine errors onto HTTP statuses: validation and transition
// problems are the caller's fault, missing records are 404, everything else 500.
func jsonError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrEditsNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case utils.IsValidationError(err), utils.IsInvalidTransition(err), utils.IsDependencyError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrTickAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func pathDate(c *gin.Context, param string, loc *time.Location) (time.Time, bool) {
	day, err := time.ParseInLocation("2006-01-02", c.Param(param), loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
		return time.Time{}, false
	}
	return day, true
}

func createOrderHandler(c *gin.Context) {
	var input models.NewOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	order, err := getEngines().orders.CreateOrder(c.Request.Context(), &input)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func getOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := getEngines().orders.Store.Get(c.Request.Context(), id)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func listOrdersHandler(loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		var customerId *int
		if v := c.Query("customer_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
				return
			}
			customerId = &n
		}
		var status *models.OrderStatus
		if v := c.Query("status"); v != "" {
			s, err := models.ParseOrderStatus(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			status = &s
		}
		var cycleDate *time.Time
		if v := c.Query("cycle_date"); v != "" {
			day, err := time.ParseInLocation("2006-01-02", v, loc)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cycle_date, want YYYY-MM-DD"})
				return
			}
			cycleDate = &day
		}
		orders, err := models.GetOrders(c.Request.Context(), config.GetDB(), customerId, status, cycleDate)
		if err != nil {
			jsonError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

func transitionOrderHandler(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := getEngines().orders.Transition(c.Request.Context(), id, status, nil)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func confirmOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := getEngines().orders.Confirm(c.Request.Context(), id)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func sourcingHandler(c *gin.Context) {
	var req struct {
		Updates []engine.SourcingUpdate `json:"updates" binding:"required"`
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	order, err := getEngines().orders.UpdateSourcingStatus(c.Request.Context(), id, req.Updates)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func cancelOrderHandler(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	_ = c.ShouldBindJSON(&req)
	order, err := getEngines().orders.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func createSubscriptionHandler(c *gin.Context) {
	var input models.NewSubscription
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	subscription, err := getEngines().subscriptions.Create(c.Request.Context(), &input)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subscription)
}

func getSubscriptionHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	subscription, err := getEngines().subscriptions.Store.Get(c.Request.Context(), id)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func listSubscriptionsHandler(c *gin.Context) {
	var customerId *int
	if v := c.Query("customer_id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
			return
		}
		customerId = &n
	}
	var status *models.SubscriptionStatus
	if v := c.Query("status"); v != "" {
		s := models.SubscriptionStatus(strings.ToUpper(v))
		status = &s
	}
	subscriptions, err := models.GetSubscriptions(c.Request.Context(), config.GetDB(), customerId, status)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subscriptions})
}

func pauseSubscriptionHandler(c *gin.Context) {
	var req struct {
		ResumeOn *time.Time `json:"resume_on"`
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	_ = c.ShouldBindJSON(&req)
	subscription, err := getEngines().subscriptions.Pause(c.Request.Context(), id, req.ResumeOn)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func resumeSubscriptionHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	subscription, err := getEngines().subscriptions.Resume(c.Request.Context(), id)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func cancelSubscriptionHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	subscription, err := getEngines().subscriptions.Cancel(c.Request.Context(), id)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func updateSubscriptionItemsHandler(c *gin.Context) {
	var req struct {
		Items []models.NewSubscriptionItem `json:"items" binding:"required"`
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	subscription, err := getEngines().subscriptions.UpdateItems(c.Request.Context(), id, req.Items)
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func addSkipDateHandler(loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			SkipDate string `json:"skip_date" binding:"required"`
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		day, err := time.ParseInLocation("2006-01-02", req.SkipDate, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skip_date, want YYYY-MM-DD"})
			return
		}
		subscription, err := getEngines().subscriptions.AddSkipDate(c.Request.Context(), id, day)
		if err != nil {
			jsonError(c, err)
			return
		}
		c.JSON(http.StatusOK, subscription)
	}
}

func bulkOrdersHandler(loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		day, ok := pathDate(c, "date", loc)
		if !ok {
			return
		}
		orders, err := getEngines().orders.GetOrdersForBulkBuying(c.Request.Context(), day)
		if err != nil {
			jsonError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cycle_date": day.Format("2006-01-02"), "orders": orders})
	}
}

func shoppingListHandler(loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		day, ok := pathDate(c, "date", loc)
		if !ok {
			return
		}
		rows, err := getEngines().orders.GetBulkShoppingList(c.Request.Context(), day)
		if err != nil {
			jsonError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cycle_date": day.Format("2006-01-02"), "shopping_list": rows})
	}
}

func statsHandler(loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now().In(loc)
		from := now.AddDate(0, 0, -30)
		if v := c.Query("from"); v != "" {
			day, err := time.ParseInLocation("2006-01-02", v, loc)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from, want YYYY-MM-DD"})
				return
			}
			from = day
		}
		to := now
		if v := c.Query("to"); v != "" {
			day, err := time.ParseInLocation("2006-01-02", v, loc)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to, want YYYY-MM-DD"})
				return
			}
			to = day.AddDate(0, 0, 1)
		}
		db := config.GetDB()
		orderStats, err := models.OrderStatistics(c.Request.Context(), db, from, to)
		if err != nil {
			jsonError(c, err)
			return
		}
		subscriptionStats, err := models.SubscriptionStatistics(c.Request.Context(), db)
		if err != nil {
			jsonError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"orders":        orderStats,
			"subscriptions": subscriptionStats,
		})
	}
}

// generateOrdersHandler drives the daily tick. Cloud Scheduler posts here; the
// redis lock keeps concurrent instances from double-running it.
func generateOrdersHandler(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GenerateUpcomingOrders")
	defer span.End()

	var summary *engine.GenerationSummary
	err := engine.WithTickLock(ctx, func(ctx context.Context) error {
		var tickErr error
		summary, tickErr = getEngines().subscriptions.GenerateUpcomingOrders(ctx)
		return tickErr
	})
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// paymentResultPubSubHandler receives provider payment outcomes via Pub/Sub push.
func paymentResultPubSubHandler(c *gin.Context) {
	logger := config.GetLogger()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		config.LogError(logger, "server.go", "paymentResultPubSubHandler", "io.ReadAll", nil, err)
		// Malformed request body: ack/drop to avoid infinite retries.
		c.Status(http.StatusNoContent)
		return
	}

	var msg PubSubMessage
	// byte slice unmarshalling handles base64 decoding.
	if err := json.Unmarshal(body, &msg); err != nil {
		config.LogError(logger, "server.go", "paymentResultPubSubHandler", "Unmarshal body", body, err)
		c.Status(http.StatusNoContent)
		return
	}

	var m paymentResultMessage
	if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
		config.LogError(logger, "server.go", "paymentResultPubSubHandler", "Unmarshal pubsub message", msg.Message.Data, err)
		c.Status(http.StatusNoContent)
		return
	}
	if m.TransactionRef == "" {
		config.LogError(logger, "server.go", "paymentResultPubSubHandler", "Invalid pubsub message", m, fmt.Errorf("transaction_ref required"))
		c.Status(http.StatusNoContent)
		return
	}

	// Correlation ID propagation: prefer payload correlation_id; fall back to
	// Pub/Sub message ID.
	correlationID := m.CorrelationId
	if correlationID == "" {
		correlationID = msg.Message.ID
	}
	ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationID)

	order, err := getEngines().orders.RecordPaymentResult(ctx, m.TransactionRef, m.Success)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) || utils.IsInvalidTransition(err) {
			// Unknown ref or already-settled order: ack/drop, retrying cannot help.
			logger.WithFields(logrus.Fields{
				"field":           "paymentResultPubSubHandler",
				"transaction_ref": m.TransactionRef,
				"message_id":      msg.Message.ID,
				"correlation_id":  correlationID,
			}).Warn("dropping payment result: " + err.Error())
			c.Status(http.StatusNoContent)
			return
		}
		logger.WithFields(logrus.Fields{
			"field":           "paymentResultPubSubHandler",
			"transaction_ref": m.TransactionRef,
			"message_id":      msg.Message.ID,
			"correlation_id":  correlationID,
		}).Error("payment result processing failed: " + err.Error())
		// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
		c.Status(http.StatusInternalServerError)
		return
	}

	logger.WithFields(logrus.Fields{
		"field":           "paymentResultPubSubHandler",
		"transaction_ref": m.TransactionRef,
		"order_number":    order.OrderNumber,
		"status":          order.CurrentStatus,
		"correlation_id":  correlationID,
	}).Info("payment result applied")
	c.Status(http.StatusNoContent)
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
	loc := utils.OperatorTimezone()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
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
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
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

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
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

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/orders", createOrderHandler)
	r.GET("/orders", listOrdersHandler(loc))
	r.GET("/orders/:id", getOrderHandler)
	r.POST("/orders/:id/transition", transitionOrderHandler)
	r.POST("/orders/:id/confirm", confirmOrderHandler)
	r.POST("/orders/:id/sourcing", sourcingHandler)
	r.POST("/orders/:id/cancel", cancelOrderHandler)

	r.POST("/subscriptions", createSubscriptionHandler)
	r.GET("/subscriptions", listSubscriptionsHandler)
	r.GET("/subscriptions/:id", getSubscriptionHandler)
	r.POST("/subscriptions/:id/pause", pauseSubscriptionHandler)
	r.POST("/subscriptions/:id/resume", resumeSubscriptionHandler)
	r.POST("/subscriptions/:id/cancel", cancelSubscriptionHandler)
	r.PUT("/subscriptions/:id/items", updateSubscriptionItemsHandler)
	r.POST("/subscriptions/:id/skip-dates", addSkipDateHandler(loc))

	r.GET("/bulk/:date/orders", bulkOrdersHandler(loc))
	r.GET("/bulk/:date/shopping-list", shoppingListHandler(loc))
	r.GET("/stats", statsHandler(loc))

	// Ops tooling: Cloud Scheduler drives the daily tick through this endpoint.
	r.POST("/internal/subscriptions/generate", generateOrdersHandler)
	r.POST("/pubsub/payment-results", paymentResultPubSubHandler)

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
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

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
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

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
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
