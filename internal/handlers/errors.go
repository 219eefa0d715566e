package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"peerprep/interview/internal/apperr"
	"peerprep/interview/internal/utils"
)

// writeError maps a service error onto its HTTP status. Internal failures are
// logged and reported without their cause.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	utils.JSONKindError(w, status, msg, string(kind))
}

// decodeBody reads a JSON body into v. An empty body is accepted when
// optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return apperr.Validation("invalid JSON body")
}
