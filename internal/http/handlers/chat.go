package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dailydrop/server/internal/chat"
	"github.com/dailydrop/server/internal/http/response"
)

type ChatHandler struct {
	chats *chat.Service
}

func NewChatHandler(chats *chat.Service) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// Text must be present but may be empty
type sendMessageRequest struct {
	ChatID uuid.UUID `json:"chatId" validate:"required"`
	Text   *string   `json:"text" validate:"required"`
}

// HandleCreate handles POST /chat.create
func (h *ChatHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	c, err := h.chats.Create(r.Context(), currentUser(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, c)
}

// HandleList handles GET /chat.list
func (h *ChatHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.List(r.Context(), currentUser(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, chats)
}

// HandleGet handles GET /chat.get?chatId=. Only admins address a chat by id;
// for everyone else the parameter is not read.
func (h *ChatHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var chatID uuid.UUID
	if user.IsAdmin() {
		var err error
		if chatID, err = optionalUUID(r, "chatId"); err != nil {
			response.Error(w, r, err)
			return
		}
	}
	c, err := h.chats.Get(r.Context(), user, chatID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, c)
}

// HandleSendMessage handles POST /chat.sendMessage
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	if _, err := h.chats.SendMessage(r.Context(), currentUser(r), req.ChatID, *req.Text); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, true)
}
