package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"payment-terminal/internal/api"
	"payment-terminal/internal/certs"
	"payment-terminal/internal/config"
	"payment-terminal/internal/interfaces"
	"payment-terminal/internal/models"
	"payment-terminal/internal/ratelimit"
	"payment-terminal/internal/services"
)

// TerminalHandler exposes the certificate-authenticated transaction
// workflows over HTTP.
type TerminalHandler struct {
	transactions  *services.TransactionService
	notifications *services.NotificationService
	disputes      *services.DisputeService
	gateway       interfaces.PersistenceGateway
	limiter       *ratelimit.Limiter
	config        *config.ParsedConfig
}

// NewTerminalHandler wires the handler over its collaborators.
func NewTerminalHandler(
	transactions *services.TransactionService,
	notifications *services.NotificationService,
	disputes *services.DisputeService,
	gateway interfaces.PersistenceGateway,
	limiter *ratelimit.Limiter,
	cfg *config.ParsedConfig,
) *TerminalHandler {
	return &TerminalHandler{
		transactions:  transactions,
		notifications: notifications,
		disputes:      disputes,
		gateway:       gateway,
		limiter:       limiter,
		config:        cfg,
	}
}

// RateLimit is the per-route fixed-window governor middleware. Denials get
// HTTP 429 with retry-after and reset fields; every response carries the
// X-RateLimit headers.
func (h *TerminalHandler) RateLimit(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := h.limiter.Check(route, c.ClientIP(), h.config.RateLimit.Requests, h.config.RateLimitWindow)

		c.Header("X-RateLimit-Limit", strconv.Itoa(h.config.RateLimit.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds() + 0.5)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"code":        api.ErrorCodeRateLimitExceeded,
				"retry_after": retryAfter,
				"reset_at":    decision.ResetAt.UTC().Format(time.RFC3339),
			})
			return
		}
		c.Next()
	}
}

// formFile reads an uploaded multipart file. A missing file is (nil, nil);
// the caller decides whether that is acceptable.
func formFile(c *gin.Context, name string) ([]byte, error) {
	fileHeader, err := c.FormFile(name)
	if err != nil {
		return nil, nil
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded %s: %v", name, err)
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (h *TerminalHandler) respondWorkflowError(c *gin.Context, err error) {
	code := services.CodeOf(err)
	c.JSON(api.StatusForCode(code), api.APIError{
		Error: err.Error(),
		Code:  code,
	})
}

// POST /api/convert-container-to-pem
func (h *TerminalHandler) ConvertContainer(c *gin.Context) {
	container, err := formFile(c, "container")
	if err != nil || len(container) == 0 {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: "container file is required",
			Code:  api.ErrorCodeValidation,
		})
		return
	}
	password := c.PostForm("password")

	result, err := certs.DecomposeContainer(container, password)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: err.Error(),
			Code:  api.ErrorCodeContainerDecomposition,
		})
		return
	}

	c.JSON(http.StatusOK, api.ConvertContainerResponse{
		CertificatePEM: result.CertificatePEM,
		PrivateKeyPEM:  result.PrivateKeyPEM,
		VATSK:          result.Identity.VATSK,
		Pokladnica:     result.Identity.Pokladnica,
	})
}

func credentialUploads(c *gin.Context) (cert, key, ca []byte, err error) {
	if cert, err = formFile(c, "certificate"); err != nil {
		return
	}
	if key, err = formFile(c, "private_key"); err != nil {
		return
	}
	ca, err = formFile(c, "ca_bundle")
	return
}

// POST /api/generate-transaction
func (h *TerminalHandler) GenerateTransaction(c *gin.Context) {
	cert, key, ca, err := credentialUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{Error: err.Error(), Code: api.ErrorCodeValidation})
		return
	}

	result, err := h.transactions.Generate(c.Request.Context(), services.GenerateInput{
		RawCert:  cert,
		RawKey:   key,
		RawCA:    ca,
		IBAN:     c.PostForm("iban"),
		Amount:   c.PostForm("amount"),
		Mode:     interfaces.ParseMode(c.PostForm("mode")),
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		h.respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.GenerateTransactionResponse{
		TransactionID: result.TransactionID,
		StatusCode:    result.Response.StatusCode,
		Response:      result.Response.Data,
		RawResponse:   result.Response.RawBody,
		EmptyBody:     result.Response.EmptyBody,
		VATSK:         result.Identity.VATSK,
		Pokladnica:    result.Identity.Pokladnica,
	})
}

// POST /api/get-transaction-history/:id
func (h *TerminalHandler) GetTransactionHistory(c *gin.Context) {
	cert, key, ca, err := credentialUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{Error: err.Error(), Code: api.ErrorCodeValidation})
		return
	}

	parsed, err := h.transactions.FetchHistory(c.Request.Context(), services.HistoryInput{
		RawCert:       cert,
		RawKey:        key,
		RawCA:         ca,
		TransactionID: c.Param("id"),
		Mode:          interfaces.ParseMode(c.PostForm("mode")),
	})
	if err != nil {
		h.respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.TransactionHistoryResponse{
		StatusCode:  parsed.StatusCode,
		Response:    parsed.Data,
		RawResponse: parsed.RawBody,
		EmptyBody:   parsed.EmptyBody,
	})
}

// POST /api/subscribe-notifications - blocks for up to the listen window
func (h *TerminalHandler) SubscribeNotifications(c *gin.Context) {
	cert, key, ca, err := credentialUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{Error: err.Error(), Code: api.ErrorCodeValidation})
		return
	}

	result, err := h.notifications.Subscribe(c.Request.Context(), services.SubscribeInput{
		RawCert:       cert,
		RawKey:        key,
		RawCA:         ca,
		VATSK:         c.PostForm("vatsk"),
		Pokladnica:    c.PostForm("pokladnica"),
		TransactionID: c.PostForm("transaction_id"),
		Mode:          interfaces.ParseMode(c.PostForm("mode")),
	})
	if err != nil {
		h.respondWorkflowError(c, err)
		return
	}

	messages := make([]api.NotificationMessage, 0, len(result.Messages))
	for _, msg := range result.Messages {
		messages = append(messages, api.NotificationMessage{
			Topic:      msg.Topic,
			Payload:    string(msg.Payload),
			ReceivedAt: msg.ReceivedAt,
		})
	}
	c.JSON(http.StatusOK, api.SubscribeResponse{
		Topic:    result.Topic,
		Messages: messages,
		Log:      result.Log,
	})
}

// POST /api/unsubscribe-notifications
func (h *TerminalHandler) UnsubscribeNotifications(c *gin.Context) {
	var req api.UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: "Invalid request format",
			Code:  api.ErrorCodeValidation,
		})
		return
	}

	found, topic := h.notifications.Cancel(req.TransactionID)
	if !found {
		// Cancelling something already finished is a normal race.
		c.JSON(http.StatusNotFound, api.UnsubscribeResponse{Found: false})
		return
	}
	c.JSON(http.StatusOK, api.UnsubscribeResponse{Found: true, Closed: true, Topic: topic})
}

// POST /api/mark-dispute
func (h *TerminalHandler) MarkDispute(c *gin.Context) {
	var req api.MarkDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: "Invalid request format",
			Code:  api.ErrorCodeValidation,
		})
		return
	}

	record, err := h.disputes.MarkDisputed(c.Request.Context(), req.TransactionID)
	if err != nil {
		h.respondWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// POST /api/set-integrity-validation
func (h *TerminalHandler) SetIntegrityValidation(c *gin.Context) {
	var req api.SetIntegrityValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsValid == nil {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: "Invalid request format",
			Code:  api.ErrorCodeValidation,
		})
		return
	}

	records, err := h.disputes.SetIntegrityValidation(c.Request.Context(), req.TransactionID, *req.IsValid)
	if err != nil {
		h.respondWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SetIntegrityValidationResponse{
		Updated:       len(records),
		Notifications: records,
	})
}

// POST /api/get-transactions-by-date
func (h *TerminalHandler) GetTransactionsByDate(c *gin.Context) {
	query, ok := h.bindDateQuery(c)
	if !ok {
		return
	}

	records, err := h.gateway.TransactionsByDate(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{Error: err.Error(), Code: api.ErrorCodeValidation})
		return
	}
	if records == nil {
		records = []*models.TransactionRecord{}
	}
	c.JSON(http.StatusOK, api.TransactionsByDateResponse{Transactions: records})
}

// POST /api/get-notifications-by-date
func (h *TerminalHandler) GetNotificationsByDate(c *gin.Context) {
	query, ok := h.bindDateQuery(c)
	if !ok {
		return
	}

	records, err := h.gateway.NotificationsByDate(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{Error: err.Error(), Code: api.ErrorCodeValidation})
		return
	}
	if records == nil {
		records = []*models.NotificationRecord{}
	}
	c.JSON(http.StatusOK, api.NotificationsByDateResponse{Notifications: records})
}

func (h *TerminalHandler) bindDateQuery(c *gin.Context) (models.DateQuery, bool) {
	var req api.ByDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: "Invalid request format",
			Code:  api.ErrorCodeValidation,
		})
		return models.DateQuery{}, false
	}

	query := models.DateQuery{
		Date:        req.Date,
		Pokladnica:  req.Pokladnica,
		TZOffsetMin: req.TZOffsetMin,
	}
	if req.Mode != "" {
		query.Endpoint = string(interfaces.ParseMode(req.Mode))
	}
	return query, true
}

// GET /api/view-confirmation/:id
func (h *TerminalHandler) ViewConfirmation(c *gin.Context) {
	record, err := h.gateway.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Printf("[HANDLER] Failed to load transaction %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, api.APIError{
			Error: "failed to load transaction",
			Code:  api.ErrorCodeInternalError,
		})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, api.APIError{
			Error: "transaction not found",
			Code:  api.ErrorCodeRecordNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, record)
}

// GET /health
func (h *TerminalHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         "payment-terminal",
		"standalone_mode": h.config.StandaloneMode,
	})
}
