package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dailydrop/server/internal/ids"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/repo"
)

// Publisher receives every message after it has been stored
type Publisher interface {
	Publish(msg model.Message)
}

// Service implements the chat lifecycle between customers and admins
type Service struct {
	chats     repo.ChatRepo
	users     repo.UserRepo
	publisher Publisher
	ids       *ids.Generator
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(chats repo.ChatRepo, users repo.UserRepo, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		chats:     chats,
		users:     users,
		publisher: publisher,
		ids:       ids.NewGenerator(),
		now:       time.Now,
		logger:    logger,
	}
}

// Create opens a chat between the caller and every current admin.
func (s *Service) Create(ctx context.Context, user *model.User) (*model.Chat, error) {
	admins, err := s.users.ListIDsByRole(ctx, model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}

	participants := append([]uuid.UUID{user.ID}, admins...)
	chat, err := s.chats.Create(ctx, participants)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "chat created",
		slog.String("chat_id", chat.ID.String()),
		slog.String("user_id", user.ID.String()),
		slog.Int("admins", len(admins)),
	)
	return chat, nil
}

// List returns the caller's open chats ordered by compareListed. Each chat
// carries its latest message and the participants other than the caller.
func (s *Service) List(ctx context.Context, user *model.User) ([]model.Chat, error) {
	chats, err := s.chats.ListOpenForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	for i := range chats {
		others := make([]model.Participant, 0, len(chats[i].Participants))
		for _, p := range chats[i].Participants {
			if p.ID != user.ID {
				others = append(others, p)
			}
		}
		chats[i].Participants = others
	}

	slices.SortStableFunc(chats, compareListed)
	return chats, nil
}

// compareListed orders chats for List. A chat without messages is compared
// by creation time, ascending when it is on the left and descending when it
// is on the right; otherwise the newer last message sorts first. This is not
// a consistent ordering when empty chats mix with non-empty ones.
// TODO: confirm the intended order for chats without messages with product.
func compareListed(a, b model.Chat) int {
	if len(a.Messages) == 0 {
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	if len(b.Messages) == 0 {
		return b.CreatedAt.Compare(a.CreatedAt)
	}
	return b.Messages[0].CreatedAt.Compare(a.Messages[0].CreatedAt)
}

// Get returns an open chat and marks it read. Admins address any chat by id;
// everyone else always gets their own latest open chat and chatID is unused.
// A missing chat yields nil without error.
func (s *Service) Get(ctx context.Context, user *model.User, chatID uuid.UUID) (*model.Chat, error) {
	var (
		chat *model.Chat
		err  error
	)
	if user.IsAdmin() {
		chat, err = s.chats.GetOpen(ctx, chatID)
	} else {
		chat, err = s.chats.GetLatestOpenForUser(ctx, user.ID)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.chats.SetRead(ctx, chat.ID, true); err != nil {
		return nil, err
	}
	chat.Read = true
	return chat, nil
}

// SendMessage stores a message from user in chatID and publishes it.
// Messages from non-admins mark the chat unread. Membership is not checked.
func (s *Service) SendMessage(ctx context.Context, user *model.User, chatID uuid.UUID, text string) (*model.Message, error) {
	now := s.now()
	msg := model.Message{
		ID:        s.ids.New(now),
		ChatID:    chatID,
		Text:      text,
		CreatedAt: now,
		Sender: model.Participant{
			ID:       user.ID,
			FullName: user.FullName,
			Avatar:   user.Avatar,
		},
	}
	if err := s.chats.AddMessage(ctx, &msg); err != nil {
		return nil, err
	}

	if !user.IsAdmin() {
		if err := s.chats.SetRead(ctx, chatID, false); err != nil {
			return nil, err
		}
	}

	s.publisher.Publish(msg)
	return &msg, nil
}
