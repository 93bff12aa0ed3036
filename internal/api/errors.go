package api

import (
	"errors"
	"net/http"

	"cafe-pos/internal/checkout"
	"cafe-pos/internal/logger"
	"cafe-pos/internal/order"
	"cafe-pos/internal/product"
	"cafe-pos/internal/queue"
	"cafe-pos/internal/utils"

	"go.uber.org/zap"
)

var errInvalidBody = errors.New("invalid request body")

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, queue.ErrEntryNotFound),
		errors.Is(err, queue.ErrOrderNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, product.ErrProductNotFound):
		return http.StatusNotFound

	case errors.Is(err, queue.ErrInvalidTransition):
		return http.StatusConflict

	case errors.Is(err, queue.ErrNothingToPrepare):
		return http.StatusUnprocessableEntity

	case errors.Is(err, errInvalidBody),
		errors.Is(err, queue.ErrInvalidPreparationType),
		errors.Is(err, checkout.ErrUnknownProduct),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidPrice),
		errors.Is(err, order.ErrInvalidPaymentMethod):
		return http.StatusBadRequest

	case errors.Is(err, queue.ErrQueueNumberConflict),
		errors.Is(err, queue.ErrQueueFull),
		errors.Is(err, queue.ErrStoreUnavailable),
		errors.Is(err, order.ErrStoreUnavailable),
		errors.Is(err, product.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)

	msg := err.Error()
	switch code {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		msg = "store temporarily unavailable, retry"
	case http.StatusInternalServerError:
		logger.FromCtx(r.Context()).Error("unhandled error", zap.Error(err))
		msg = http.StatusText(code)
	}

	utils.WriteJSONError(w, msg, code)
}
