package game

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// lobby is the registry actor. It owns the room map and the active-identity
// set, so every room lookup, creation and identity reservation is serialized
// through LobbyActor. Rooms run their own goroutines; the lobby only ever
// talks to them through their non-blocking request channels.
type lobby struct {
	rooms                map[string]Room
	pubRoomsDescriptions map[string]roomDescription
	activeUsers          map[string]string

	roomJoinReqs        chan roomJoinRequest
	removeRoomChan      chan string
	releaseIdentityChan chan string
	pubGamesReq         chan chan []roomDescription
	roomDescUpdate      chan roomDescription

	idGenerator   UniqueIdGenerator
	tickerCreator PeriodicTickerChannelCreator
	recorder      GameRecorder
	roomConfigs   RoomConfigs
	seedSource    rand.Source
}

func NewLobby(idgen UniqueIdGenerator, tickerCreator PeriodicTickerChannelCreator, recorder GameRecorder, roomConfigs RoomConfigs) *lobby {
	return &lobby{
		rooms:                map[string]Room{},
		pubRoomsDescriptions: map[string]roomDescription{},
		activeUsers:          map[string]string{},
		roomJoinReqs:         make(chan roomJoinRequest, 256),
		removeRoomChan:       make(chan string, 32),
		releaseIdentityChan:  make(chan string, 256),
		pubGamesReq:          make(chan chan []roomDescription, 256),
		roomDescUpdate:       make(chan roomDescription, 256),
		idGenerator:          idgen,
		tickerCreator:        tickerCreator,
		recorder:             recorder,
		roomConfigs:          roomConfigs,
		seedSource:           rand.NewSource(time.Now().UnixNano()),
	}
}

func (l *lobby) ForwardPlayerJoinRequestToRoom(ctx context.Context, jreq roomJoinRequest) {
	select {
	case l.roomJoinReqs <- jreq:
	case <-ctx.Done():
	}
}

func (l *lobby) RequestUpdateDescription(desc roomDescription) {
	select {
	case l.roomDescUpdate <- desc:
	default:
	}
}

func (l *lobby) RemoveRoom(roomId string) {
	l.removeRoomChan <- roomId
}

func (l *lobby) ReleaseIdentity(userId string) {
	l.releaseIdentityChan <- userId
}

func (l *lobby) GetPublicRooms(ctx context.Context) []roomDescription {
	respChan := make(chan []roomDescription, 1)
	select {
	case l.pubGamesReq <- respChan:
		select {
		case resp := <-respChan:
			return resp
		case <-ctx.Done():
			return nil
		}
	case <-ctx.Done():
		return nil
	}
}

func (l *lobby) LobbyActor(started chan struct{}) {
	pingTicker, stopPing := l.tickerCreator.Create(time.Second * 30)
	defer stopPing()

	close(started)

	for {
		select {
		case <-pingTicker:
			for _, r := range l.rooms {
				r.PingPlayers()
			}

		case roomId := <-l.removeRoomChan:
			l.handleRemoveRoom(roomId)

		case userId := <-l.releaseIdentityChan:
			delete(l.activeUsers, userId)

		case desc := <-l.roomDescUpdate:
			l.pubRoomsDescriptions[desc.id] = desc

		case pubGamesReq := <-l.pubGamesReq:
			l.handleGetPublicRoomsDescription(pubGamesReq)

		case joinReq := <-l.roomJoinReqs:
			l.handleJoinReq(joinReq)
		}
	}
}

// handleJoinReq enforces one room per identity, creating the target room on
// first use. An identity that is already playing may reconnect to its own
// room (the room swaps the stale session out); joining anywhere else is
// refused. For fresh joins the identity is reserved before the room answers;
// a relay goroutine watches the room's verdict and returns the reservation
// if the join was refused.
func (l *lobby) handleJoinReq(joinReq roomJoinRequest) {
	userId := joinReq.player.Id()

	if currentRoomId, active := l.activeUsers[userId]; active {
		if joinReq.roomId != currentRoomId {
			joinReq.errChan <- ErrAlreadyInGame
			return
		}
		currentRoom, ok := l.rooms[currentRoomId]
		if !ok {
			joinReq.errChan <- ErrAlreadyInGame
			return
		}
		// the reservation stays as is: the room answers the request
		// directly and the session is replaced, not added
		currentRoom.RequestJoin(joinReq)
		return
	}

	roomId := joinReq.roomId
	if roomId == "" {
		roomId = l.idGenerator.Generate()
	}

	room, ok := l.rooms[roomId]
	if !ok {
		room = l.createRoom(roomId)
	}

	l.activeUsers[userId] = roomId

	inner := roomJoinRequest{roomId: roomId, player: joinReq.player, errChan: make(chan error, 1)}
	room.RequestJoin(inner)

	go func() {
		err := <-inner.errChan
		if err != nil {
			l.ReleaseIdentity(userId)
		}
		joinReq.errChan <- err
	}()
}

func (l *lobby) createRoom(roomId string) Room {
	rng := rand.New(rand.NewSource(l.seedSource.Int63()))
	room := NewRoom(roomId, l.roomConfigs, l.recorder, l.tickerCreator, rng)
	room.SetParentLobby(l)

	l.rooms[roomId] = room
	l.pubRoomsDescriptions[roomId] = room.Description()
	go room.GameLoop()

	slog.Info("room created", "room_id", roomId)
	return room
}

func (l *lobby) handleRemoveRoom(toRemoveId string) {
	room, ok := l.rooms[toRemoveId]
	if !ok {
		return
	}
	delete(l.rooms, toRemoveId)
	delete(l.pubRoomsDescriptions, toRemoveId)

	// joins can race the room's own teardown; everyone still mapped to the
	// removed room gets their identity back here
	for userId, roomId := range l.activeUsers {
		if roomId == toRemoveId {
			delete(l.activeUsers, userId)
		}
	}

	room.CloseAndRelease()
	l.idGenerator.Dispose(toRemoveId)
	slog.Info("room removed", "room_id", toRemoveId)
}

func (l *lobby) handleGetPublicRoomsDescription(req chan []roomDescription) {
	descriptions := make([]roomDescription, 0, len(l.pubRoomsDescriptions))
	for _, description := range l.pubRoomsDescriptions {
		descriptions = append(descriptions, description)
	}
	req <- descriptions
}
