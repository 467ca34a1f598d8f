package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLobby(t *testing.T, configs RoomConfigs) (*lobby, *MockUniqueIdGenerator) {
	t.Helper()

	idgen := &MockUniqueIdGenerator{}
	idgen.On("Dispose", mock.Anything).Return()

	tickerCreator := &MockPeriodicTickerChannelCreator{}
	// a ticker that never fires: these tests drive the lobby through its
	// request channels only
	tickerCreator.On("Create", mock.Anything).Return(make(chan time.Time))

	l := NewLobby(idgen, tickerCreator, nil, configs)

	started := make(chan struct{})
	go l.LobbyActor(started)
	<-started

	return l, idgen
}

func awaitAnswer(t *testing.T, jreq roomJoinRequest) error {
	t.Helper()

	select {
	case err := <-jreq.errChan:
		return err
	case <-time.After(time.Second):
		t.Fatal("join request was never answered")
		return nil
	}
}

func awaitJoin(t *testing.T, l *lobby, roomId string, p Player) error {
	t.Helper()

	jreq := NewRoomJoinRequest(roomId, p)
	l.ForwardPlayerJoinRequestToRoom(context.Background(), jreq)
	return awaitAnswer(t, jreq)
}

func TestLobby_JoinUnknownRoomCreatesIt(t *testing.T) {
	l, _ := newTestLobby(t, DefaultRoomConfigs())

	p := newFakePlayer("user-1", "alice")
	require.NoError(t, awaitJoin(t, l, "fresh-room", p))

	rooms := l.GetPublicRooms(context.Background())
	require.Len(t, rooms, 1)
	assert.Equal(t, "fresh-room", rooms[0].id)
}

func TestLobby_JoinWithoutRoomIdMintsOne(t *testing.T) {
	l, idgen := newTestLobby(t, DefaultRoomConfigs())
	idgen.On("Generate").Return("minted-id")

	p := newFakePlayer("user-1", "alice")
	require.NoError(t, awaitJoin(t, l, "", p))

	rooms := l.GetPublicRooms(context.Background())
	require.Len(t, rooms, 1)
	assert.Equal(t, "minted-id", rooms[0].id)
	idgen.AssertCalled(t, "Generate")
}

func TestLobby_OneRoomPerIdentity(t *testing.T) {
	l, _ := newTestLobby(t, DefaultRoomConfigs())

	first := newFakePlayer("user-1", "alice")
	require.NoError(t, awaitJoin(t, l, "room-a", first))

	sneaky := newFakePlayer("user-1", "alice")
	assert.ErrorIs(t, awaitJoin(t, l, "room-b", sneaky), ErrAlreadyInGame)
	assert.ErrorIs(t, awaitJoin(t, l, "", sneaky), ErrAlreadyInGame)

	rooms := l.GetPublicRooms(context.Background())
	assert.Len(t, rooms, 1, "the second room must not come into being")
}

func TestLobby_SameIdentityReconnectsToItsOwnRoom(t *testing.T) {
	l, _ := newTestLobby(t, DefaultRoomConfigs())

	first := newFakePlayer("user-1", "alice")
	require.NoError(t, awaitJoin(t, l, "room-a", first))

	// a fresh connection with the same identity takes over the session
	second := newFakePlayer("user-1", "alice")
	require.NoError(t, awaitJoin(t, l, "room-a", second))

	assert.True(t, first.wasReleased(), "the stale session must be dropped")

	rooms := l.GetPublicRooms(context.Background())
	require.Len(t, rooms, 1, "the takeover must not mint a second room")
}

func TestLobby_RefusedJoinReturnsTheIdentity(t *testing.T) {
	configs := DefaultRoomConfigs()
	configs.MaxPlayers = 1
	l, _ := newTestLobby(t, configs)

	require.NoError(t, awaitJoin(t, l, "tiny-room", newFakePlayer("user-1", "alice")))
	assert.ErrorIs(t, awaitJoin(t, l, "tiny-room", newFakePlayer("user-2", "bob")), ErrRoomFull)

	// the refused identity is free to try elsewhere
	require.NoError(t, awaitJoin(t, l, "other-room", newFakePlayer("user-2", "bob")))
}

func TestLobby_RemoveRoomDropsItFromListing(t *testing.T) {
	l, idgen := newTestLobby(t, DefaultRoomConfigs())

	require.NoError(t, awaitJoin(t, l, "doomed-room", newFakePlayer("user-1", "alice")))
	l.RemoveRoom("doomed-room")

	require.Eventually(t, func() bool {
		return len(l.GetPublicRooms(context.Background())) == 0
	}, time.Second, 10*time.Millisecond)
	idgen.AssertCalled(t, "Dispose", "doomed-room")
}

// The room empties and queues its own removal; before the registry handles
// it, another player's join is accepted by the dying room. The late joiner's
// session goes down with the room, but their identity must come back so they
// can play again.
func TestLobby_JoinRacingRoomTeardownReturnsTheIdentity(t *testing.T) {
	idgen := &MockUniqueIdGenerator{}
	idgen.On("Dispose", mock.Anything).Return()
	tickerCreator := &MockPeriodicTickerChannelCreator{}
	tickerCreator.On("Create", mock.Anything).Return(make(chan time.Time))

	// no actor here: the handlers run inline so the interleaving is exact
	l := NewLobby(idgen, tickerCreator, nil, DefaultRoomConfigs())

	first := newFakePlayer("user-1", "alice")
	firstReq := NewRoomJoinRequest("raced-room", first)
	l.handleJoinReq(firstReq)
	require.NoError(t, awaitAnswer(t, firstReq))

	// the only player leaves and the room asks to be removed
	first.room.RemoveMe(context.Background(), first)
	require.Eventually(t, first.wasReleased, time.Second, 10*time.Millisecond)

	// a second player slips in before the removal is handled
	second := newFakePlayer("user-2", "bob")
	secondReq := NewRoomJoinRequest("raced-room", second)
	l.handleJoinReq(secondReq)
	require.NoError(t, awaitAnswer(t, secondReq))

	select {
	case roomId := <-l.removeRoomChan:
		l.handleRemoveRoom(roomId)
	case <-time.After(time.Second):
		t.Fatal("the emptied room never asked to be removed")
	}

	_, active := l.activeUsers["user-2"]
	assert.False(t, active, "the raced identity must be returned")
	require.Eventually(t, second.wasReleased, time.Second, 10*time.Millisecond)

	// and the raced player is free to play again
	third := newFakePlayer("user-2", "bob")
	thirdReq := NewRoomJoinRequest("other-room", third)
	l.handleJoinReq(thirdReq)
	require.NoError(t, awaitAnswer(t, thirdReq))
}

func TestLobby_GetPublicRoomsHonorsContext(t *testing.T) {
	l, _ := newTestLobby(t, DefaultRoomConfigs())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, l.GetPublicRooms(ctx))
}
