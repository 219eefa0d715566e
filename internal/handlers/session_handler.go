package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"peerprep/interview/internal/apperr"
	"peerprep/interview/internal/middleware"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/utils"
)

type SessionService interface {
	ScheduleSession(ctx context.Context, callerID string, req models.ScheduleReq) (*models.ScheduledSession, error)
	InviteParticipant(ctx context.Context, sessionID, callerID, userID string) (*models.ScheduledSession, error)
	GetSession(ctx context.Context, sessionID, callerID string) (*models.ScheduledSession, error)
	ListOpenSessions(ctx context.Context, limit int) ([]models.ScheduledSession, error)
	ListSessionsForUser(ctx context.Context, userID string) ([]models.ScheduledSession, error)
	GetLiveSession(ctx context.Context, sessionID, callerID string) (*models.LiveSessionView, error)
	SwitchRoles(ctx context.Context, sessionID, callerID string) (*models.LiveSessionView, error)
	ChangeQuestion(ctx context.Context, sessionID, callerID string, questionID *string) (*models.LiveSessionView, error)
	EndInterview(ctx context.Context, sessionID, callerID string) (*models.EndResult, error)
	CancelSession(ctx context.Context, sessionID, callerID string) (*models.ScheduledSession, error)
}

type SessionHandler struct {
	svc    SessionService
	logger *zap.Logger
}

func NewSessionHandler(svc SessionService, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{svc: svc, logger: logger}
}

func (handler *SessionHandler) ScheduleSessionHandler(writer http.ResponseWriter, request *http.Request) {
	var req models.ScheduleReq
	if err := decodeBody(request, &req, false); err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	session, err := handler.svc.ScheduleSession(request.Context(), middleware.CallerID(request), req)
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusCreated, session)
}

func (handler *SessionHandler) ListMySessionsHandler(writer http.ResponseWriter, request *http.Request) {
	sessions, err := handler.svc.ListSessionsForUser(request.Context(), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, sessions)
}

func (handler *SessionHandler) ListOpenSessionsHandler(writer http.ResponseWriter, request *http.Request) {
	limit := 0
	if raw := request.URL.Query().Get("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l <= 0 {
			writeError(writer, handler.logger, apperr.Validation("limit must be a positive integer"))
			return
		}
		limit = l
	}
	sessions, err := handler.svc.ListOpenSessions(request.Context(), limit)
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, sessions)
}

func (handler *SessionHandler) GetSessionHandler(writer http.ResponseWriter, request *http.Request) {
	session, err := handler.svc.GetSession(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, session)
}

func (handler *SessionHandler) GetLiveSessionHandler(writer http.ResponseWriter, request *http.Request) {
	view, err := handler.svc.GetLiveSession(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, view)
}

func (handler *SessionHandler) InviteHandler(writer http.ResponseWriter, request *http.Request) {
	var req models.InviteReq
	if err := decodeBody(request, &req, false); err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	session, err := handler.svc.InviteParticipant(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request), req.UserID)
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, session)
}

func (handler *SessionHandler) SwitchRolesHandler(writer http.ResponseWriter, request *http.Request) {
	view, err := handler.svc.SwitchRoles(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, view)
}

// ChangeQuestionHandler accepts an empty body, which asks for a random question.
func (handler *SessionHandler) ChangeQuestionHandler(writer http.ResponseWriter, request *http.Request) {
	var req models.ChangeQuestionReq
	if err := decodeBody(request, &req, true); err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	view, err := handler.svc.ChangeQuestion(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request), req.QuestionID)
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, view)
}

func (handler *SessionHandler) EndInterviewHandler(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.svc.EndInterview(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, result)
}

func (handler *SessionHandler) CancelSessionHandler(writer http.ResponseWriter, request *http.Request) {
	session, err := handler.svc.CancelSession(request.Context(), chi.URLParam(request, "id"), middleware.CallerID(request))
	if err != nil {
		writeError(writer, handler.logger, err)
		return
	}
	utils.JSON(writer, http.StatusOK, session)
}
