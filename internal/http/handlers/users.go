package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dailydrop/server/internal/http/response"
	"github.com/dailydrop/server/internal/middleware"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/users"
)

type UserHandler struct {
	users *users.Service
}

func NewUserHandler(svc *users.Service) *UserHandler {
	return &UserHandler{users: svc}
}

type assignDriverRequest struct {
	CustomerID uuid.UUID `json:"customerId" validate:"required"`
	DriverID   uuid.UUID `json:"driverId" validate:"required"`
}

type deviceRequest struct {
	NotificationID string `json:"notificationId" validate:"required"`
}

// HandleMe handles GET /user.me. Anonymous callers get null data.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	me, err := h.users.Me(r.Context(), user)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, me)
}

// HandleCreate handles POST /user.create
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}
	in, err := users.DecodeInput(raw)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if _, err := h.users.Save(r.Context(), currentUser(r), in); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, true)
}

// HandleList handles GET /user.list?keyword=&type=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	role := model.Role(strings.TrimSpace(q.Get("type")))

	found, err := h.users.List(r.Context(), currentUser(r), strings.TrimSpace(q.Get("keyword")), role)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, found)
}

// HandleAssignDriver handles POST /user.assignDriver
func (h *UserHandler) HandleAssignDriver(w http.ResponseWriter, r *http.Request) {
	var req assignDriverRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	if err := h.users.AssignDriver(r.Context(), currentUser(r), req.CustomerID, req.DriverID); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, true)
}

// HandleListUnassigned handles GET /user.listUnassignedUsers
func (h *UserHandler) HandleListUnassigned(w http.ResponseWriter, r *http.Request) {
	found, err := h.users.ListUnassigned(r.Context(), currentUser(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, found)
}

// HandleGetBasicInfo handles GET /user.getBasicInfo?userId=
func (h *UserHandler) HandleGetBasicInfo(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUUID(r, "userId")
	if err != nil {
		response.Error(w, r, err)
		return
	}
	info, err := h.users.GetBasicInfo(r.Context(), userID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, info)
}

// HandleSetNotificationID handles POST /user.setNotificationId
func (h *UserHandler) HandleSetNotificationID(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	if err := h.users.AddDeviceID(r.Context(), currentUser(r), strings.TrimSpace(req.NotificationID)); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, true)
}

// HandleRemoveNotificationID handles POST /user.removeNotificationId
func (h *UserHandler) HandleRemoveNotificationID(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	if err := h.users.RemoveDeviceID(r.Context(), currentUser(r), strings.TrimSpace(req.NotificationID)); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, true)
}

