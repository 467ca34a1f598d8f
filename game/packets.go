package game

import (
	"encoding/json"
	"log/slog"
)

// The packet layer is the wire contract: event names and payload field names
// must stay stable across implementations.

type ServerPacket struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type ClientPacket struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ClientPacketEnvelope struct {
	clientPacket ClientPacket
	from         Player
}

// Inbound action kinds.
const (
	ActionStartGame     = "start-game"
	ActionPlayerMove    = "player-move"
	ActionCompleteTask  = "complete-task"
	ActionCollectData   = "collect-data"
	ActionKillPlayer    = "kill-player"
	ActionCallEmergency = "call-emergency"
	ActionVote          = "vote"
	ActionChatMessage   = "chat-message"
	ActionPing          = "ping"
)

type movePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type completeTaskPayload struct {
	SynapseId int `json:"synapseId"`
}

type collectDataPayload struct {
	BubbleId int `json:"bubbleId"`
}

type killPayload struct {
	VictimId string `json:"victimId"`
}

type votePayload struct {
	TargetId string `json:"targetId"`
}

type chatPayload struct {
	Message string `json:"message"`
}

// Outbound event kinds.
const (
	EventGameState     = "game-state"
	EventJoinSuccess   = "join-success"
	EventGameStarted   = "game-started"
	EventGameUpdate    = "game-update"
	EventPlayerMoved   = "player-moved"
	EventTaskCompleted = "task-completed"
	EventDataCollected = "data-collected"
	EventPlayerKilled  = "player-killed"
	EventVotingStarted = "voting-started"
	EventVoteAccepted  = "vote-registered"
	EventPlayerEjected = "player-ejected"
	EventNoEjection    = "no-ejection"
	EventChatMessage   = "chat-message"
	EventVirusChat     = "virus-chat"
	EventPlayerLeft    = "player-left"
	EventGameEnded     = "game-ended"
	EventError         = "error"
	EventPong          = "pong"
)

type gameStatePayload struct {
	Id            string        `json:"id"`
	Players       []PlayerState `json:"players"`
	GameState     string        `json:"gameState"`
	Synapses      []*Synapse    `json:"synapses"`
	DataBubbles   []*DataBubble `json:"dataBubbles"`
	NetworkHealth float64       `json:"networkHealth"`
	VirusCount    int           `json:"virusCount"`
	GameTime      int           `json:"gameTime"`
	World         *World        `json:"world"`
	VotingPhase   bool          `json:"votingPhase"`
}

type gameUpdatePayload struct {
	DataBubbles   []*DataBubble `json:"dataBubbles"`
	Synapses      []*Synapse    `json:"synapses"`
	NetworkHealth float64       `json:"networkHealth"`
	GameTime      int           `json:"gameTime"`
	World         *World        `json:"world"`
}

type joinSuccessPayload struct {
	PlayerId string `json:"playerId"`
	RoomId   string `json:"roomId"`
	IsVirus  bool   `json:"isVirus"`
}

type playerMovedPayload struct {
	PlayerId string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type taskCompletedPayload struct {
	SynapseId int              `json:"synapseId"`
	PlayerId  string           `json:"playerId"`
	GameState gameStatePayload `json:"gameState"`
}

type dataCollectedPayload struct {
	BubbleId  int              `json:"bubbleId"`
	PlayerId  string           `json:"playerId"`
	GameState gameStatePayload `json:"gameState"`
}

type playerKilledPayload struct {
	VirusId   string           `json:"virusId"`
	VictimId  string           `json:"victimId"`
	GameState gameStatePayload `json:"gameState"`
}

type votingStartedPayload struct {
	Caller       string       `json:"caller"`
	AlivePlayers []voteOption `json:"alivePlayers"`
	VotingTime   int          `json:"votingTime"`
}

type voteOption struct {
	Id       string `json:"id"`
	Username string `json:"username"`
}

type voteRegisteredPayload struct {
	TargetId string `json:"targetId"`
}

type playerEjectedPayload struct {
	Player   PlayerState `json:"player"`
	WasVirus bool        `json:"wasVirus"`
	Votes    int         `json:"votes"`
}

type noEjectionPayload struct {
	Reason string `json:"reason"`
}

type chatMessagePayload struct {
	PlayerId  string `json:"playerId"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	IsAlive   bool   `json:"isAlive"`
	IsVirus   bool   `json:"isVirus"`
}

type playerLeftPayload struct {
	PlayerId  string           `json:"playerId"`
	GameState gameStatePayload `json:"gameState"`
}

type gameEndedPayload struct {
	Winner  string        `json:"winner"`
	Players []PlayerState `json:"players"`
	Stats   gameStats     `json:"stats"`
}

type gameStats struct {
	NetworkHealth  float64 `json:"networkHealth"`
	CompletedTasks int     `json:"completedTasks"`
	TotalTasks     int     `json:"totalTasks"`
	PlayersAlive   int     `json:"playersAlive"`
	TotalPlayers   int     `json:"totalPlayers"`
	GameTime       int     `json:"gameTime"`
}

func unmarshalPayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return ErrInvalidAction
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return ErrInvalidAction
	}
	return nil
}

// marshalPacket returns nil on a marshal failure; Player.Send treats nil as
// a no-op so one bad payload never takes down a broadcast batch.
func marshalPacket(eventType string, data any) []byte {
	bytes, err := json.Marshal(ServerPacket{Type: eventType, Data: data})
	if err != nil {
		slog.Error("failed to marshal server packet", "event", eventType, "error", err)
		return nil
	}
	return bytes
}
