package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailydrop/server/internal/apierr"
	"github.com/dailydrop/server/internal/model"
	"github.com/dailydrop/server/internal/repo/memstore"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (p *recordingPublisher) Publish(msg model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

type fixture struct {
	store    *memstore.Store
	svc      *Service
	pub      *recordingPublisher
	clock    time.Time
	admin    *model.User
	admin2   *model.User
	customer *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memstore.New(),
		pub:   &recordingPublisher{},
		clock: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	f.store.SetClock(func() time.Time { return f.clock })
	f.admin = f.putUser("Ada Admin", model.RoleAdmin)
	f.tick()
	f.admin2 = f.putUser("Bob Admin", model.RoleAdmin)
	f.tick()
	f.customer = f.putUser("Cara Customer", model.RoleCustomer)
	f.tick()

	f.svc = NewService(f.store.Chats(), f.store.Users(), f.pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) putUser(name string, role model.Role) *model.User {
	return f.store.PutUser(model.User{FullName: name, Role: role, Email: name, Phone: name})
}

func (f *fixture) tick() {
	f.clock = f.clock.Add(time.Minute)
}

func participantIDs(ps []model.Participant) []uuid.UUID {
	out := make([]uuid.UUID, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestCreateAddsCallerAndAllAdmins(t *testing.T) {
	f := newFixture(t)

	chat, err := f.svc.Create(context.Background(), f.customer)
	require.NoError(t, err)

	assert.False(t, chat.Closed)
	assert.True(t, chat.Read)
	assert.Equal(t, []uuid.UUID{f.customer.ID, f.admin.ID, f.admin2.ID}, participantIDs(chat.Participants))
}

func TestSendMessageFlipsReadAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)

	msg, err := f.svc.SendMessage(ctx, f.customer, chat.ID, "where is my order?")
	require.NoError(t, err)
	assert.Equal(t, f.customer.ID, msg.Sender.ID)
	assert.Equal(t, "Cara Customer", msg.Sender.FullName)

	got, err := f.store.Chats().GetOpen(ctx, chat.ID)
	require.NoError(t, err)
	assert.False(t, got.Read, "customer message marks chat unread")

	require.Len(t, f.pub.msgs, 1)
	assert.Equal(t, msg.ID, f.pub.msgs[0].ID)
	assert.Equal(t, chat.ID, f.pub.msgs[0].ChatID)

	viewed, err := f.svc.Get(ctx, f.admin, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, viewed)
	assert.True(t, viewed.Read)

	got, err = f.store.Chats().GetOpen(ctx, chat.ID)
	require.NoError(t, err)
	assert.True(t, got.Read, "admin fetch marks chat read")
}

func TestAdminMessageKeepsReadFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, f.admin, chat.ID, "on its way")
	require.NoError(t, err)

	got, err := f.store.Chats().GetOpen(ctx, chat.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
}

func TestSendMessageUnknownChat(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendMessage(context.Background(), f.customer, uuid.New(), "hello")
	assert.True(t, apierr.IsKind(err, apierr.ErrNotFound))
	assert.Empty(t, f.pub.msgs)
}

func TestSendMessageDoesNotCheckMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	outsider := f.putUser("Olly Outsider", model.RoleCustomer)
	chat, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, outsider, chat.ID, "hi")
	assert.NoError(t, err)
}

func TestMessagesNewestFirstWithStableTies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)

	for _, text := range []string{"first", "second", "third"} {
		_, err := f.svc.SendMessage(ctx, f.customer, chat.ID, text)
		require.NoError(t, err)
	}

	got, err := f.svc.Get(ctx, f.admin, chat.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "third", got.Messages[0].Text)
	assert.Equal(t, "second", got.Messages[1].Text)
	assert.Equal(t, "first", got.Messages[2].Text)
}

func TestListOrdersByActivityAndHidesCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)
	f.tick()
	a, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)
	f.tick()
	_, err = f.svc.SendMessage(ctx, f.customer, b.ID, "ping")
	require.NoError(t, err)

	chats, err := f.svc.List(ctx, f.customer)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, b.ID, chats[0].ID, "chat with the newer message sorts first")
	assert.Equal(t, a.ID, chats[1].ID)

	require.Len(t, chats[0].Messages, 1)
	assert.Equal(t, "ping", chats[0].Messages[0].Text)
	assert.Empty(t, chats[1].Messages)
	for _, c := range chats {
		assert.NotContains(t, participantIDs(c.Participants), f.customer.ID)
		assert.Len(t, c.Participants, 2)
	}
}

func TestListPutsChatWithMessageBeforeNewerEmptyChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withMessage, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)
	f.tick()
	_, err = f.svc.SendMessage(ctx, f.customer, withMessage.ID, "hello")
	require.NoError(t, err)
	f.tick()
	empty, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)

	chats, err := f.svc.List(ctx, f.customer)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, withMessage.ID, chats[0].ID)
	assert.Equal(t, empty.ID, chats[1].ID)
}

func TestListEmptyChatsOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)
	f.tick()
	newer, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)

	chats, err := f.svc.List(ctx, f.customer)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, older.ID, chats[0].ID)
	assert.Equal(t, newer.ID, chats[1].ID)
}

func TestCompareListed(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	at := func(d time.Duration) time.Time { return t0.Add(d) }
	chatAt := func(created time.Duration, last ...time.Duration) model.Chat {
		c := model.Chat{CreatedAt: at(created)}
		for _, l := range last {
			c.Messages = append(c.Messages, model.Message{CreatedAt: at(l)})
		}
		return c
	}

	tests := []struct {
		name string
		a, b model.Chat
		want int
	}{
		{"left empty compares creation ascending", chatAt(time.Hour), chatAt(0, 2*time.Hour), 1},
		{"right empty compares creation descending", chatAt(0, 2*time.Hour), chatAt(time.Hour), 1},
		{"both empty", chatAt(0), chatAt(time.Hour), -1},
		{"newer last message first", chatAt(0, 3*time.Hour), chatAt(time.Hour, 2*time.Hour), -1},
		{"same last message", chatAt(0, time.Hour), chatAt(time.Minute, time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compareListed(tt.a, tt.b))
		})
	}
}

func TestListOnlyLatestMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, f.customer, chat.ID, "old")
	require.NoError(t, err)
	f.tick()
	_, err = f.svc.SendMessage(ctx, f.admin, chat.ID, "new")
	require.NoError(t, err)

	chats, err := f.svc.List(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Len(t, chats[0].Messages, 1)
	assert.Equal(t, "new", chats[0].Messages[0].Text)
}

func TestListSkipsClosedChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)
	f.store.SetChatClosed(chat.ID, true)

	chats, err := f.svc.List(ctx, f.customer)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestGetNonAdminIgnoresRequestedID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)
	f.tick()
	latest, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, f.customer, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, latest.ID, got.ID)
}

func TestGetMissingReturnsNil(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Get(ctx, f.admin, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.svc.Get(ctx, f.customer, uuid.Nil)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSendMessageReachesSubscriber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := NewBroadcaster()
	f.svc.publisher = b
	chat, err := f.svc.Create(ctx, f.customer)
	require.NoError(t, err)

	sub := b.Subscribe(chat.ID)
	defer sub.Close()

	sent, err := f.svc.SendMessage(ctx, f.customer, chat.ID, "live")
	require.NoError(t, err)
	assert.Equal(t, sent.ID, receive(t, sub).ID)
}
