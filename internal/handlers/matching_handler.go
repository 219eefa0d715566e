package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"peerprep/interview/internal/middleware"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/utils"
)

type MatchingService interface {
	StartMatching(ctx context.Context, sessionID, callerID string) (*models.MatchingStartedResult, error)
	GetMatchingStatus(ctx context.Context, sessionID, callerID string) (*models.MatchingRequest, error)
	ConfirmMatch(ctx context.Context, requestID, callerID string) (*models.ConfirmResult, error)
	ExpireMatchIfNotConfirmed(ctx context.Context, requestID, callerID string) (*models.ExpireResult, error)
	ExpireAllRequestsForSession(ctx context.Context, sessionID, callerID string) (int, error)
}

type MatchingHandler struct {
	svc    MatchingService
	logger *zap.Logger
}

func NewMatchingHandler(svc MatchingService, logger *zap.Logger) *MatchingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchingHandler{svc: svc, logger: logger}
}

func (handler *MatchingHandler) StartMatchingHandler(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.svc.StartMatching(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	utils.JSON(writer, status, result)
}

// GetMatchingStatusHandler answers 204 when the caller never asked to match.
func (handler *MatchingHandler) GetMatchingStatusHandler(writer http.ResponseWriter, request *http.Request) {
	req, err := handler.svc.GetMatchingStatus(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	if req == nil {
		writer.WriteHeader(http.StatusNoContent)
		return
	}
	utils.JSON(writer, http.StatusOK, req)
}

func (handler *MatchingHandler) CancelMatchingHandler(writer http.ResponseWriter, request *http.Request) {
	n, err := handler.svc.ExpireAllRequestsForSession(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, map[string]int{"expired": n})
}

func (handler *MatchingHandler) ConfirmMatchHandler(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.svc.ConfirmMatch(request.Context(), chi.URLParam(request, "requestId"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, result)
}

func (handler *MatchingHandler) ExpireMatchHandler(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.svc.ExpireMatchIfNotConfirmed(request.Context(), chi.URLParam(request, "requestId"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, result)
}
