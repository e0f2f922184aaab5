package handlers

import (
	"net/http"
	"strings"

	"github.com/dailydrop/server/internal/apierr"
	"github.com/dailydrop/server/internal/http/response"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/notification"
)

type NotificationHandler struct {
	notifications *notification.Service
}

func NewNotificationHandler(svc *notification.Service) *NotificationHandler {
	return &NotificationHandler{notifications: svc}
}

// HandleList handles GET /notification.list?type=
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var typ *model.NotificationType
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		t := model.NotificationType(raw)
		if t != model.NotificationCustomerAssigned && t != model.NotificationGeneral {
			response.Error(w, r, apierr.ErrBadRequest.Withf("type must be one of %s %s",
				model.NotificationCustomerAssigned, model.NotificationGeneral))
			return
		}
		typ = &t
	}

	list, err := h.notifications.List(r.Context(), currentUser(r).ID, typ)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, list)
}
