package game

import (
	"context"
	"time"

	"codebreakers/domain"
)

type WebsocketConnection interface {
	Close(errCode string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

type UserGetter interface {
	GetUserById(ctx context.Context, id string) (domain.User, error)
}

// GameRecorder receives the per-player result records of a finished game.
// The core holds no durable storage responsibility beyond emitting these.
type GameRecorder interface {
	RecordGameResults(ctx context.Context, roomId string, results []domain.PlayerResult) error
}

type LeaderboardProvider interface {
	Leaderboard(ctx context.Context, limit int) ([]domain.PlayerStats, error)
}

type UniqueIdGenerator interface {
	Generate() string
	Dispose(id string)
}

// PeriodicTickerChannelCreator exists so tests can drive room time by hand.
type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) (<-chan time.Time, func())
}

type Player interface {
	Id() string
	Username() string
	Send(data []byte)
	Ping() error
	SetRoom(r Room)
	CancelAndRelease()
}

type Room interface {
	RequestJoin(jreq roomJoinRequest)
	Send(ctx context.Context, e ClientPacketEnvelope)
	RemoveMe(ctx context.Context, p Player)
	PingPlayers()
	GameLoop()
	CloseAndRelease()
	Description() roomDescription
	SetParentLobby(l Lobby)
}

type Lobby interface {
	ForwardPlayerJoinRequestToRoom(ctx context.Context, jreq roomJoinRequest)
	RequestUpdateDescription(desc roomDescription)
	RemoveRoom(roomId string)
	ReleaseIdentity(userId string)
	GetPublicRooms(ctx context.Context) []roomDescription
}
