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

type FeedbackService interface {
	SubmitFeedback(ctx context.Context, reviewerID string, req models.SubmitFeedbackReq) (*models.InterviewFeedback, error)
	GetFeedbackForSession(ctx context.Context, sessionID, callerID string) ([]models.InterviewFeedback, error)
	GetFeedback(ctx context.Context, id, callerID string) (*models.InterviewFeedback, error)
}

type FeedbackHandler struct {
	svc    FeedbackService
	logger *zap.Logger
}

func NewFeedbackHandler(svc FeedbackService, logger *zap.Logger) *FeedbackHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackHandler{svc: svc, logger: logger}
}

func (handler *FeedbackHandler) SubmitFeedbackHandler(writer http.ResponseWriter, request *http.Request) {
	var req models.SubmitFeedbackReq
	if err := decodeBody(request, &req, false); err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	fb, err := handler.svc.SubmitFeedback(request.Context(), middleware.CallerID(request), req)
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusCreated, fb)
}

func (handler *FeedbackHandler) GetFeedbackHandler(writer http.ResponseWriter, request *http.Request) {
	fb, err := handler.svc.GetFeedback(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, fb)
}

func (handler *FeedbackHandler) GetSessionFeedbackHandler(writer http.ResponseWriter, request *http.Request) {
	list, err := handler.svc.GetFeedbackForSession(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, list)
}
