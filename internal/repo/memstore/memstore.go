// Package memstore is a map-backed implementation of the repo interfaces.
// It mirrors the constraints of the Postgres schema closely enough for
// service tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dailydrop/server/internal/apierr"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/repo"
)

// Store holds every table in memory. The zero value is not usable; call New.
type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	users         map[uuid.UUID]*model.User
	subscriptions map[uuid.UUID]*model.Subscription
	chats         map[uuid.UUID]*chatRow
	notifications []*model.Notification
}

type chatRow struct {
	chat         model.Chat
	participants []uuid.UUID
	messages     []model.Message
}

func New() *Store {
	return &Store{
		now:           time.Now,
		users:         make(map[uuid.UUID]*model.User),
		subscriptions: make(map[uuid.UUID]*model.Subscription),
		chats:         make(map[uuid.UUID]*chatRow),
	}
}

// SetClock overrides the time source used for generated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Users() repo.UserRepo                 { return userStore{s} }
func (s *Store) OTPs() repo.OtpRepo                   { return otpStore{s} }
func (s *Store) Devices() repo.DeviceRepo             { return deviceStore{s} }
func (s *Store) Subscriptions() repo.SubscriptionRepo { return subscriptionStore{s} }
func (s *Store) Chats() repo.ChatRepo                 { return chatStore{s} }
func (s *Store) Notifications() repo.NotificationRepo { return notificationStore{s} }

// PutSubscription seeds a subscription.
func (s *Store) PutSubscription(sub model.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.ID] = &sub
}

// PutUser inserts or replaces u as-is, assigning an ID when missing.
func (s *Store) PutUser(u model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = &u
	return cloneUser(&u)
}

// SetChatClosed marks a chat closed or open.
func (s *Store) SetChatClosed(chatID uuid.UUID, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		c.chat.Closed = closed
	}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.DeviceIDs = append([]string(nil), u.DeviceIDs...)
	c.DisabledNotifications = append([]model.NotificationType(nil), u.DisabledNotifications...)
	return &c
}

func notFound(what string) error {
	return fmt.Errorf("%s not found: %w", what, repo.ErrNotFound)
}

type userStore struct{ s *Store }

func (r userStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return cloneUser(u), nil
}

func (r userStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, notFound("user")
}

func (r userStore) sorted(match func(*model.User) bool) []*model.User {
	var out []*model.User
	for _, u := range r.s.users {
		if match(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r userStore) ListIDsByRole(_ context.Context, role model.Role) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uuid.UUID
	for _, u := range r.sorted(func(u *model.User) bool { return u.Role == role }) {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (r userStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return 0, notFound("user")
	}
	u.PasswordHash = hash
	u.PasswordChangeCounter++
	u.UpdatedAt = r.s.now()
	return u.PasswordChangeCounter, nil
}

func (r userStore) checkUnique(u *model.User) error {
	for _, other := range r.s.users {
		if other.ID == u.ID {
			continue
		}
		if other.Email == u.Email {
			return apierr.ErrConflict.WithMessage("A user with this email already exists.")
		}
		if other.Phone == u.Phone {
			return apierr.ErrConflict.WithMessage("A user with this phone already exists.")
		}
	}
	if u.SubscriptionID != nil {
		if _, ok := r.s.subscriptions[*u.SubscriptionID]; !ok {
			return apierr.ErrNotFound.WithMessage("subscription not found")
		}
	}
	return nil
}

func (r userStore) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkUnique(u); err != nil {
		return err
	}
	u.ID = uuid.New()
	u.CreatedAt = r.s.now()
	u.UpdatedAt = u.CreatedAt
	r.s.users[u.ID] = cloneUser(u)
	return nil
}

func (r userStore) Update(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[u.ID]
	if !ok {
		return notFound("user")
	}
	if err := r.checkUnique(u); err != nil {
		return err
	}
	updated := cloneUser(u)
	updated.PasswordHash = existing.PasswordHash
	updated.PasswordChangeCounter = existing.PasswordChangeCounter
	updated.OTP = existing.OTP
	updated.LastOTPSentAt = existing.LastOTPSentAt
	updated.AssignedDriverID = existing.AssignedDriverID
	updated.DeliveriesLeft = existing.DeliveriesLeft
	updated.DeviceIDs = existing.DeviceIDs
	updated.DisabledNotifications = existing.DisabledNotifications
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = r.s.now()
	r.s.users[u.ID] = updated
	u.UpdatedAt = updated.UpdatedAt
	return nil
}

func containsFold(s *string, sub string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), sub)
}

func (r userStore) List(_ context.Context, f repo.UserFilter) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kw := strings.ToLower(f.Keyword)
	matched := r.sorted(func(u *model.User) bool {
		if f.Role != "" && u.Role != f.Role {
			return false
		}
		if kw == "" {
			return true
		}
		return containsFold(&u.FullName, kw) || containsFold(&u.Email, kw) ||
			containsFold(&u.Phone, kw) || containsFold(u.SecondaryPhone, kw)
	})
	out := []model.User{}
	for i := len(matched) - 1; i >= 0; i-- {
		out = append(out, *cloneUser(matched[i]))
	}
	return out, nil
}

func (r userStore) ListUnassignedCustomers(_ context.Context) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	matched := r.sorted(func(u *model.User) bool {
		return u.Role == model.RoleCustomer && u.AssignedDriverID == nil
	})
	out := []model.User{}
	for i := len(matched) - 1; i >= 0; i-- {
		out = append(out, *cloneUser(matched[i]))
	}
	return out, nil
}

func (r userStore) AssignDriver(_ context.Context, customerID, driverID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.users[customerID]
	if !ok {
		return notFound("customer")
	}
	if _, ok := r.s.users[driverID]; !ok {
		return apierr.ErrNotFound.WithMessage("driver not found")
	}
	c.AssignedDriverID = &driverID
	return nil
}

type otpStore struct{ s *Store }

func (r otpStore) SetOTP(_ context.Context, userID uuid.UUID, code string, sentAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return notFound("user")
	}
	u.OTP = &code
	u.LastOTPSentAt = &sentAt
	return nil
}

type deviceStore struct{ s *Store }

func (r deviceStore) Add(_ context.Context, userID uuid.UUID, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return apierr.ErrNotFound.WithMessage("user not found")
	}
	for _, t := range u.DeviceIDs {
		if t == token {
			return nil
		}
	}
	u.DeviceIDs = append(u.DeviceIDs, token)
	return nil
}

func (r deviceStore) Remove(_ context.Context, userID uuid.UUID, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil
	}
	kept := u.DeviceIDs[:0]
	for _, t := range u.DeviceIDs {
		if t != token {
			kept = append(kept, t)
		}
	}
	u.DeviceIDs = kept
	return nil
}

type subscriptionStore struct{ s *Store }

func (r subscriptionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subscriptions[id]
	if !ok {
		return nil, notFound("subscription")
	}
	c := *sub
	return &c, nil
}

type chatStore struct{ s *Store }

func (r chatStore) participant(id uuid.UUID) model.Participant {
	u := r.s.users[id]
	if u == nil {
		return model.Participant{ID: id}
	}
	return model.Participant{ID: u.ID, FullName: u.FullName, Avatar: u.Avatar}
}

// view projects a stored chat; limit < 0 keeps every message.
func (r chatStore) view(row *chatRow, limit int) model.Chat {
	c := row.chat
	c.Participants = []model.Participant{}
	for _, id := range row.participants {
		c.Participants = append(c.Participants, r.participant(id))
	}
	msgs := make([]model.Message, len(row.messages))
	copy(msgs, row.messages)
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return msgs[i].ID > msgs[j].ID
	})
	if limit >= 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	for i := range msgs {
		msgs[i].Sender = r.participant(msgs[i].Sender.ID)
	}
	c.Messages = msgs
	return c
}

func (r chatStore) Create(_ context.Context, participantIDs []uuid.UUID) (*model.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row := &chatRow{chat: model.Chat{ID: uuid.New(), Read: true, CreatedAt: r.s.now()}}
	seen := map[uuid.UUID]bool{}
	for _, id := range participantIDs {
		if _, ok := r.s.users[id]; !ok {
			return nil, apierr.ErrNotFound.WithMessage("user not found")
		}
		if !seen[id] {
			seen[id] = true
			row.participants = append(row.participants, id)
		}
	}
	r.s.chats[row.chat.ID] = row
	c := r.view(row, -1)
	return &c, nil
}

func (r chatStore) openFor(userID uuid.UUID) []*chatRow {
	var out []*chatRow
	for _, row := range r.s.chats {
		if row.chat.Closed {
			continue
		}
		for _, id := range row.participants {
			if id == userID {
				out = append(out, row)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].chat.CreatedAt.After(out[j].chat.CreatedAt) })
	return out
}

func (r chatStore) ListOpenForUser(_ context.Context, userID uuid.UUID) ([]model.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Chat{}
	for _, row := range r.openFor(userID) {
		out = append(out, r.view(row, 1))
	}
	return out, nil
}

func (r chatStore) GetOpen(_ context.Context, chatID uuid.UUID) (*model.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.chats[chatID]
	if !ok || row.chat.Closed {
		return nil, notFound("chat")
	}
	c := r.view(row, -1)
	return &c, nil
}

func (r chatStore) GetLatestOpenForUser(_ context.Context, userID uuid.UUID) (*model.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.openFor(userID)
	if len(rows) == 0 {
		return nil, notFound("chat")
	}
	c := r.view(rows[0], -1)
	return &c, nil
}

func (r chatStore) SetRead(_ context.Context, chatID uuid.UUID, read bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if row, ok := r.s.chats[chatID]; ok {
		row.chat.Read = read
	}
	return nil
}

func (r chatStore) AddMessage(_ context.Context, m *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.chats[m.ChatID]
	if !ok {
		return apierr.ErrNotFound.WithMessage("chat not found")
	}
	row.messages = append(row.messages, *m)
	return nil
}

type notificationStore struct{ s *Store }

func (r notificationStore) Create(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[n.UserID]; !ok {
		return apierr.ErrNotFound.WithMessage("user not found")
	}
	n.ID = uuid.New()
	n.CreatedAt = r.s.now()
	n.UpdatedAt = n.CreatedAt
	c := *n
	r.s.notifications = append(r.s.notifications, &c)
	return nil
}

func (r notificationStore) List(_ context.Context, userID uuid.UUID, typ *model.NotificationType) ([]model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Notification{}
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		n := r.s.notifications[i]
		if n.UserID != userID || (typ != nil && n.Type != *typ) {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (r notificationStore) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}
