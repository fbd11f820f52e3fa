package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vovakirdan/mentorchat/internal/mocks"
	"github.com/vovakirdan/mentorchat/internal/store"
)

const quiet = 100 * time.Millisecond

func TestRouterSendEditDeleteFlow(t *testing.T) {
	st := newTestStore(t)
	hub := startHub(t, st)

	u1 := connect(t, hub, "c1", "u1")
	u2 := connect(t, hub, "c2", "u2")
	drain(u1)

	u1.Commands <- &Command{Kind: CommandSendPrivateMessage, Recipient: "u2", Content: "hi"}

	echo := mustEvent(t, u1.Events, EventPrivateMessage)
	got := mustEvent(t, u2.Events, EventPrivateMessage)
	require.Same(t, echo, got)
	require.NotEmpty(t, got.Message.ID)
	require.Equal(t, "u1", got.Message.Sender)
	require.Equal(t, "u2", got.Message.Recipient)
	require.Equal(t, "hi", got.Message.Content)
	require.False(t, got.Message.Edited)
	require.False(t, got.Message.CreatedAt.IsZero())
	id := got.Message.ID

	u1.Commands <- &Command{Kind: CommandEditMessage, MessageID: id, Content: "hi there"}
	edited := mustEvent(t, u2.Events, EventMessageEdited)
	require.Equal(t, id, edited.MessageID)
	require.Equal(t, "hi there", edited.Content)

	stored, err := st.GetMessage(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "hi there", stored.Content)
	require.True(t, stored.Edited)

	u1.Commands <- &Command{Kind: CommandDeleteMessage, MessageID: id}
	deleted := mustEvent(t, u2.Events, EventMessageDeleted)
	require.Equal(t, id, deleted.MessageID)

	_, err = st.GetMessage(context.Background(), id)
	require.ErrorIs(t, err, store.ErrNotFound)

	// The author is never notified about its own edits or deletions.
	expectNoEvent(t, u1.Events, quiet)
}

func TestRouterSendToOfflineRecipientPersists(t *testing.T) {
	st := newTestStore(t)
	hub := startHub(t, st)

	u1 := connect(t, hub, "c1", "u1")

	u1.Commands <- &Command{Kind: CommandSendPrivateMessage, Recipient: "u3", Content: "later"}
	echo := mustEvent(t, u1.Events, EventPrivateMessage)
	require.Equal(t, "u3", echo.Message.Recipient)

	stored, err := st.GetMessage(context.Background(), echo.Message.ID)
	require.NoError(t, err)
	require.Equal(t, "later", stored.Content)
}

func TestRouterSelfMessageDeliveredOnce(t *testing.T) {
	hub := startHub(t, newTestStore(t))

	u1 := connect(t, hub, "c1", "u1")
	u1.Commands <- &Command{Kind: CommandSendPrivateMessage, Recipient: "u1", Content: "note to self"}

	ev := mustEvent(t, u1.Events, EventPrivateMessage)
	require.Equal(t, "u1", ev.Message.Sender)
	require.Equal(t, "u1", ev.Message.Recipient)
	expectNoEvent(t, u1.Events, quiet)
}

func TestRouterAnonymousCommandsAreDropped(t *testing.T) {
	mock := mocks.NewMockMessageStore(gomock.NewController(t))
	hub := startHub(t, mock)

	u2 := connect(t, hub, "c2", "u2")
	anon := NewClient("c-anon", 0)
	hub.RegisterClient(anon)
	settle(hub)
	drain(anon)

	// No store calls are expected: the mock fails the test on any.
	anon.Commands <- &Command{Kind: CommandSendPrivateMessage, Recipient: "u2", Content: "hi"}
	anon.Commands <- &Command{Kind: CommandEditMessage, MessageID: "m1", Content: "x"}
	anon.Commands <- &Command{Kind: CommandDeleteMessage, MessageID: "m1"}

	expectNoEvent(t, u2.Events, quiet)
	expectNoEvent(t, anon.Events, quiet)
}

func TestRouterForeignAndUnknownMessagesAreIgnored(t *testing.T) {
	st := newTestStore(t)
	hub := startHub(t, st)

	u1 := connect(t, hub, "c1", "u1")
	u2 := connect(t, hub, "c2", "u2")
	drain(u1)

	u1.Commands <- &Command{Kind: CommandSendPrivateMessage, Recipient: "u2", Content: "original"}
	id := mustEvent(t, u1.Events, EventPrivateMessage).Message.ID
	mustEvent(t, u2.Events, EventPrivateMessage)

	u2.Commands <- &Command{Kind: CommandEditMessage, MessageID: id, Content: "hijacked"}
	u2.Commands <- &Command{Kind: CommandDeleteMessage, MessageID: id}
	u2.Commands <- &Command{Kind: CommandEditMessage, MessageID: "missing", Content: "x"}
	u2.Commands <- &Command{Kind: CommandDeleteMessage, MessageID: "missing"}
	// Commands from one connection run in order, so the echo marks the end.
	u2.Commands <- &Command{Kind: CommandSendPrivateMessage, Recipient: "u2", Content: "marker"}
	mustEvent(t, u2.Events, EventPrivateMessage)

	expectNoEvent(t, u1.Events, quiet)

	stored, err := st.GetMessage(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "original", stored.Content)
	require.False(t, stored.Edited)
}

func TestRouterPersistenceFailureDeliversNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := mocks.NewMockMessageStore(ctrl)
	hub := startHub(t, mock)

	u1 := connect(t, hub, "c1", "u1")
	u2 := connect(t, hub, "c2", "u2")
	drain(u1)

	failure := errors.New("disk full")
	mock.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).Return(failure)

	u1.Commands <- &Command{Kind: CommandSendPrivateMessage, Recipient: "u2", Content: "hi"}

	expectNoEvent(t, u1.Events, quiet)
	expectNoEvent(t, u2.Events, quiet)
}

func TestRouterEditFailureAfterOwnershipCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := mocks.NewMockMessageStore(ctrl)
	hub := startHub(t, mock)

	u1 := connect(t, hub, "c1", "u1")
	u2 := connect(t, hub, "c2", "u2")
	drain(u1)

	msg := &store.Message{ID: "m1", Sender: "u1", Recipient: "u2", Content: "hi"}
	gomock.InOrder(
		mock.EXPECT().GetMessage(gomock.Any(), "m1").Return(msg, nil),
		mock.EXPECT().UpdateMessageContent(gomock.Any(), "m1", "u1", "new").Return(nil, errors.New("connection reset")),
	)

	u1.Commands <- &Command{Kind: CommandEditMessage, MessageID: "m1", Content: "new"}
	expectNoEvent(t, u2.Events, quiet)
}

func TestRouterDeleteNotifiesOnlyOnlineRecipient(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := mocks.NewMockMessageStore(ctrl)
	hub := startHub(t, mock)

	u1 := connect(t, hub, "c1", "u1")

	msg := &store.Message{ID: "m1", Sender: "u1", Recipient: "u2", Content: "hi"}
	mock.EXPECT().GetMessage(gomock.Any(), "m1").Return(msg, nil)
	mock.EXPECT().DeleteMessage(gomock.Any(), "m1", "u1").Return(msg, nil)

	u1.Commands <- &Command{Kind: CommandDeleteMessage, MessageID: "m1"}
	expectNoEvent(t, u1.Events, quiet)
}

func TestRouterPreservesPerSenderOrder(t *testing.T) {
	hub := startHub(t, newTestStore(t))

	u1 := connect(t, hub, "c1", "u1")
	u2 := connect(t, hub, "c2", "u2")
	drain(u1)

	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		u1.Commands <- &Command{Kind: CommandSendPrivateMessage, Recipient: "u2", Content: c}
	}
	for _, want := range contents {
		ev := mustEvent(t, u2.Events, EventPrivateMessage)
		require.Equal(t, want, ev.Message.Content)
	}
}

func TestRouterHandlesQueuedCommandsBeforeDisconnect(t *testing.T) {
	st := newTestStore(t)
	hub := startHub(t, st)

	for round := 0; round < 20; round++ {
		u1 := connect(t, hub, "c1", "u1")
		u2 := connect(t, hub, "c2", "u2")

		contents := []string{"one", "two", "three", "four", "five"}
		for _, c := range contents {
			u1.Commands <- &Command{Kind: CommandSendPrivateMessage, Recipient: "u2", Content: c}
		}
		hub.UnregisterClient(u1)

		msgs, err := st.(store.HistoryStore).ListConversation(context.Background(), "u1", "u2", 100, nil)
		require.NoError(t, err)
		require.Len(t, msgs, (round+1)*len(contents))
		for i, want := range contents {
			require.Equal(t, want, msgs[round*len(contents)+i].Content)
		}

		// Recipient sees every message before the sender goes offline.
		for _, want := range contents {
			ev := mustEvent(t, u2.Events, EventPrivateMessage)
			require.Equal(t, want, ev.Message.Content)
		}
		offline := mustEvent(t, u2.Events, EventPresence)
		require.Equal(t, []string{"u2"}, offline.Identities)

		hub.UnregisterClient(u2)
	}
}
