package httpserver

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/cloudbox/internal/errs"
)

// statusOf maps error kinds to HTTP status codes and client-facing messages.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrNamespaceNotFound), errors.Is(err, errs.ErrIdentityUnknown):
		return http.StatusNotFound, "invalid token"
	case errors.Is(err, errs.ErrEntryNotFound):
		return http.StatusNotFound, "file not found"
	case errors.Is(err, errs.ErrUnsafeName):
		return http.StatusBadRequest, "unsafe file name"
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "bad request"
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge, "upload too large"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limited"
	case errors.Is(err, errs.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable, "storage unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
	}
	writeJSONError(w, code, msg)
}
