package restapi

import (
	"context"
	"net/http"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/app/service"
	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/infrastructure/statusfeed"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 20

// SessionManager is the part of the session service the API drives.
type SessionManager interface {
	Connect(ctx context.Context) (entity.Session, error)
	Restore(ctx context.Context) (entity.Session, bool, error)
	AccountsChanged(accounts []string) (entity.Session, bool)
	ChainChanged(chainID string) (entity.Session, error)
	Disconnect()
	Current() (entity.Session, bool)
}

// TransferController is the part of the orchestrator the API drives.
type TransferController interface {
	State() service.Snapshot
	Tokens() []entity.TokenRecord
	Scan(ctx context.Context, session entity.Session) ([]entity.TokenRecord, error)
	AddCustomToken(ctx context.Context, session entity.Session, address string) (entity.TokenMetadata, error)
	ExecuteBatch(ctx context.Context, session entity.Session, recipient string) (entity.Attempt, error)
	Await(ctx context.Context) (entity.TrackOutcome, error)
	ConfirmFallback(ctx context.Context) (entity.FallbackSummary, error)
	DeclineFallback() error
	ExecuteTraditional(ctx context.Context, session entity.Session, recipient string) (entity.FallbackSummary, error)
	TestSingleTransfer(ctx context.Context, session entity.Session, recipient string) (string, error)
}

// HandlerDeps are the collaborators of the HTTP handlers.
type HandlerDeps struct {
	Sessions     SessionManager
	Transfers    TransferController
	Capabilities port.CapabilityNegotiator
	Networks     port.NetworkDefinitionProvider
	Feed         *statusfeed.Feed
	Journal      port.AttemptJournal
	Logger       port.Logger
}

// Handler обрабатывает HTTP запросы API v1.
type Handler struct {
	HandlerDeps
}

// NewHandler создает новый экземпляр Handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{HandlerDeps: deps}
}

// SessionResponse describes the connected wallet.
type SessionResponse struct {
	Connected bool           `json:"connected"`
	Session   entity.Session `json:"session"`
	Network   string         `json:"network,omitempty"`
}

type connectRequest struct {
	// Restore reuses an already authorized account instead of prompting.
	Restore bool `json:"restore"`
}

type accountsRequest struct {
	Accounts []string `json:"accounts"`
}

type chainRequest struct {
	ChainID string `json:"chainId" binding:"required"`
}

type customTokenRequest struct {
	Address string `json:"address" binding:"required"`
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	// Wait keeps the request open until the batch is tracked to an outcome.
	Wait bool `json:"wait"`
}

type traditionalRequest struct {
	Recipient string `json:"recipient"`
	Confirm   bool   `json:"confirm"`
}

type limitQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// BatchResponse is returned once the wallet accepted a batch.
type BatchResponse struct {
	Attempt entity.Attempt       `json:"attempt"`
	Outcome *entity.TrackOutcome `json:"outcome,omitempty"`
}

func (h *Handler) sessionResponse(session entity.Session, connected bool) SessionResponse {
	resp := SessionResponse{Connected: connected, Session: session}
	if connected {
		resp.Network = h.Networks.NetworkName(session.ChainID)
	}
	return resp
}

// requireSession aborts with 409 when no wallet is connected.
func (h *Handler) requireSession(c *gin.Context) (entity.Session, bool) {
	session, connected := h.Sessions.Current()
	if !connected {
		abortWithError(c, entity.ErrNotConnected)
		return entity.Session{}, false
	}
	return session, true
}

func (h *Handler) GetSession(c *gin.Context) {
	session, connected := h.Sessions.Current()
	c.JSON(http.StatusOK, h.sessionResponse(session, connected))
}

func (h *Handler) Connect(c *gin.Context) {
	var req connectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, APIError{Error: err.Error(), Kind: entity.KindValidation.String()})
			return
		}
	}

	if req.Restore {
		session, ok, err := h.Sessions.Restore(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, h.sessionResponse(session, ok))
		return
	}

	session, err := h.Sessions.Connect(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(session, true))
}

func (h *Handler) Disconnect(c *gin.Context) {
	h.Sessions.Disconnect()
	c.JSON(http.StatusOK, h.sessionResponse(entity.Session{}, false))
}

func (h *Handler) AccountsChanged(c *gin.Context) {
	var req accountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: err.Error(), Kind: entity.KindValidation.String()})
		return
	}
	session, connected := h.Sessions.AccountsChanged(req.Accounts)
	c.JSON(http.StatusOK, h.sessionResponse(session, connected))
}

func (h *Handler) ChainChanged(c *gin.Context) {
	var req chainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: err.Error(), Kind: entity.KindValidation.String()})
		return
	}
	session, err := h.Sessions.ChainChanged(req.ChainID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(session, true))
}

func (h *Handler) GetTokens(c *gin.Context) {
	tokens := h.Transfers.Tokens()
	if tokens == nil {
		tokens = []entity.TokenRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

func (h *Handler) Scan(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	tokens, err := h.Transfers.Scan(c.Request.Context(), session)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if tokens == nil {
		tokens = []entity.TokenRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "network": h.Networks.NetworkName(session.ChainID)})
}

func (h *Handler) AddCustomToken(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	var req customTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: err.Error(), Kind: entity.KindValidation.String()})
		return
	}
	meta, err := h.Transfers.AddCustomToken(c.Request.Context(), session, req.Address)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, meta)
}

func (h *Handler) GetCapabilities(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	snapshot, err := h.Capabilities.QueryAtomicSupport(c.Request.Context(), session)
	if err != nil {
		h.Logger.Warn("Capability query failed", "chainId", session.ChainID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"capability": snapshot, "batchAllowed": snapshot.Status.AllowsBatch()})
}

func (h *Handler) GetSupportReport(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"checks": h.Capabilities.SupportReport(c.Request.Context(), session)})
}

func (h *Handler) GetTransferState(c *gin.Context) {
	c.JSON(http.StatusOK, h.Transfers.State())
}

// ExecuteBatch submits the atomic batch. Without wait it answers 202 as soon as
// the wallet returned a batch id; tracking continues in the background.
func (h *Handler) ExecuteBatch(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: err.Error(), Kind: entity.KindValidation.String()})
		return
	}

	// the submission must not die with the HTTP request once the wallet prompt is open
	ctx := context.WithoutCancel(c.Request.Context())
	attempt, err := h.Transfers.ExecuteBatch(ctx, session, req.Recipient)
	if err != nil {
		body := errorBody(err)
		body.FallbackOffered = attempt.State == entity.StateFallbackOffered
		_ = c.Error(err)
		c.AbortWithStatusJSON(statusFor(err), body)
		return
	}

	if !req.Wait {
		c.JSON(http.StatusAccepted, BatchResponse{Attempt: attempt})
		return
	}
	outcome, err := h.Transfers.Await(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, BatchResponse{Attempt: attempt, Outcome: &outcome})
}

func (h *Handler) ConfirmFallback(c *gin.Context) {
	summary, err := h.Transfers.ConfirmFallback(context.WithoutCancel(c.Request.Context()))
	if err != nil && !summary.Success() && len(summary.Results) == 0 {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, fallbackBody(summary, err))
}

func (h *Handler) DeclineFallback(c *gin.Context) {
	if err := h.Transfers.DeclineFallback(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Transfers.State())
}

func (h *Handler) ExecuteTraditional(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	var req traditionalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: err.Error(), Kind: entity.KindValidation.String()})
		return
	}
	if !req.Confirm {
		abortWithError(c, entity.NewError(entity.KindValidation, "individual transfers need explicit confirmation", nil))
		return
	}
	summary, err := h.Transfers.ExecuteTraditional(context.WithoutCancel(c.Request.Context()), session, req.Recipient)
	if err != nil && len(summary.Results) == 0 {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, fallbackBody(summary, err))
}

func (h *Handler) TestTransfer(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: err.Error(), Kind: entity.KindValidation.String()})
		return
	}
	hash, err := h.Transfers.TestSingleTransfer(context.WithoutCancel(c.Request.Context()), session, req.Recipient)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txHash": hash})
}

func (h *Handler) GetStatus(c *gin.Context) {
	var q limitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: err.Error(), Kind: entity.KindValidation.String()})
		return
	}
	resp := gin.H{"messages": h.Feed.Messages(q.Limit)}
	if latest, ok := h.Feed.Latest(); ok {
		resp["latest"] = latest
	}
	if outcome, ok := h.Feed.LastOutcome(); ok {
		resp["lastOutcome"] = outcome
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetHistory(c *gin.Context) {
	var q limitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: err.Error(), Kind: entity.KindValidation.String()})
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultHistoryLimit
	}
	attempts, err := h.Journal.Recent(c.Request.Context(), q.Limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if attempts == nil {
		attempts = []entity.Attempt{}
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func fallbackBody(summary entity.FallbackSummary, err error) gin.H {
	body := gin.H{"summary": summary, "success": summary.Success()}
	if err != nil {
		body["error"] = err.Error()
	}
	return body
}
