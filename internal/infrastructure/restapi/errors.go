package restapi

import (
	"errors"
	"net/http"

	"batch_transfer/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// APIError is the error body of every failed request.
type APIError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Code  int    `json:"code,omitempty"`
	// Symbols lists the tokens that failed balance re-verification.
	Symbols []string `json:"symbols,omitempty"`
	// FallbackOffered is set when individual transfers can be confirmed instead.
	FallbackOffered bool `json:"fallbackOffered,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrTransferInProgress),
		errors.Is(err, entity.ErrNotConnected),
		errors.Is(err, entity.ErrNoFallbackOffered),
		errors.Is(err, entity.ErrStaleSession):
		return http.StatusConflict
	}
	var stale *entity.StaleBalanceError
	if errors.As(err, &stale) {
		return http.StatusConflict
	}
	switch entity.KindOf(err) {
	case entity.KindValidation:
		return http.StatusBadRequest
	case entity.KindCapability, entity.KindStaleState, entity.KindUserRejection:
		return http.StatusConflict
	case entity.KindFunds:
		return http.StatusUnprocessableEntity
	case entity.KindProtocol, entity.KindTransport:
		return http.StatusBadGateway
	case entity.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func errorBody(err error) APIError {
	body := APIError{Error: err.Error(), Kind: entity.KindOf(err).String()}
	var te *entity.TransferError
	if errors.As(err, &te) {
		body.Code = te.Code
	}
	var stale *entity.StaleBalanceError
	if errors.As(err, &stale) {
		body.Kind = entity.KindStaleState.String()
		body.Symbols = stale.Symbols
	}
	if errors.Is(err, entity.ErrStaleSession) {
		body.Kind = entity.KindStaleState.String()
	}
	return body
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), errorBody(err))
}
