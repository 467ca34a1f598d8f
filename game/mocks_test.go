package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"codebreakers/domain"
)

// --- WebsocketConnection ---

type MockWebsocketConnection struct {
	mock.Mock
}

func (m *MockWebsocketConnection) Close(errCode string) {
	m.Called(errCode)
}

func (m *MockWebsocketConnection) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockWebsocketConnection) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockWebsocketConnection) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- UniqueIdGenerator ---

type MockUniqueIdGenerator struct {
	mock.Mock
}

func (m *MockUniqueIdGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockUniqueIdGenerator) Dispose(id string) {
	m.Called(id)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) (<-chan time.Time, func()) {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time), func() {}
}

// --- UserGetter ---

type MockUserGetter struct {
	mock.Mock
}

func (m *MockUserGetter) GetUserById(ctx context.Context, id string) (domain.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.User), args.Error(1)
}

// --- GameRecorder ---

type MockGameRecorder struct {
	mock.Mock
}

func (m *MockGameRecorder) RecordGameResults(ctx context.Context, roomId string, results []domain.PlayerResult) error {
	args := m.Called(ctx, roomId, results)
	return args.Error(0)
}

// --- LeaderboardProvider ---

type MockLeaderboardProvider struct {
	mock.Mock
}

func (m *MockLeaderboardProvider) Leaderboard(ctx context.Context, limit int) ([]domain.PlayerStats, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.PlayerStats), args.Error(1)
}

// --- Lobby ---

type MockLobby struct {
	mock.Mock
}

func (m *MockLobby) ForwardPlayerJoinRequestToRoom(ctx context.Context, jreq roomJoinRequest) {
	m.Called(ctx, jreq)
}

func (m *MockLobby) RequestUpdateDescription(desc roomDescription) {
	m.Called(desc)
}

func (m *MockLobby) RemoveRoom(roomId string) {
	m.Called(roomId)
}

func (m *MockLobby) ReleaseIdentity(userId string) {
	m.Called(userId)
}

func (m *MockLobby) GetPublicRooms(ctx context.Context) []roomDescription {
	args := m.Called(ctx)
	return args.Get(0).([]roomDescription)
}

// --- Room ---

type MockRoom struct {
	mock.Mock
}

func (m *MockRoom) RequestJoin(jreq roomJoinRequest) {
	m.Called(jreq)
}

func (m *MockRoom) Send(ctx context.Context, e ClientPacketEnvelope) {
	m.Called(ctx, e)
}

func (m *MockRoom) RemoveMe(ctx context.Context, p Player) {
	m.Called(ctx, p)
}

func (m *MockRoom) PingPlayers() {
	m.Called()
}

func (m *MockRoom) GameLoop() {
	m.Called()
}

func (m *MockRoom) CloseAndRelease() {
	m.Called()
}

func (m *MockRoom) Description() roomDescription {
	args := m.Called()
	return args.Get(0).(roomDescription)
}

func (m *MockRoom) SetParentLobby(l Lobby) {
	m.Called(l)
}

// fakePlayer records everything a room sends so tests can assert on
// broadcast contents without mock.On noise for every packet.
type fakePlayer struct {
	id       string
	username string

	mu       sync.Mutex
	sent     [][]byte
	pings    int
	released bool
	room     Room
}

func newFakePlayer(id, username string) *fakePlayer {
	return &fakePlayer{id: id, username: username}
}

func (p *fakePlayer) Id() string       { return p.id }
func (p *fakePlayer) Username() string { return p.username }

func (p *fakePlayer) Send(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, data)
}

func (p *fakePlayer) Ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pings++
	return nil
}

func (p *fakePlayer) SetRoom(r Room) { p.room = r }

func (p *fakePlayer) CancelAndRelease() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
}

func (p *fakePlayer) wasReleased() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// packetsOfType decodes every recorded packet of the given event kind.
func (p *fakePlayer) packetsOfType(eventType string) []json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matches []json.RawMessage
	for _, data := range p.sent {
		var packet struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &packet); err != nil {
			continue
		}
		if packet.Type == eventType {
			matches = append(matches, packet.Data)
		}
	}
	return matches
}

func (p *fakePlayer) lastPacketOfType(eventType string) (json.RawMessage, bool) {
	matches := p.packetsOfType(eventType)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[len(matches)-1], true
}
