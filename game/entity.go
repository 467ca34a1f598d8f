package game

import "time"

const (
	basePlayerSize  = 20.0
	basePlayerSpeed = 4.0
	virusSpeed      = 4.5
	baseEnergy      = 100.0
	trailCapacity   = 10

	levelUpSizeGain   = 3.0
	levelUpEnergyGain = 20.0
	levelUpSpeedGain  = 0.2
	detectVirusLevel  = 3
)

var playerPalette = []string{
	"#00ff88", "#88ff00", "#ff8800", "#0088ff",
	"#ff0088", "#8800ff", "#ff4444", "#44ff44",
	"#4444ff", "#ffff44", "#ff44ff", "#44ffff",
}

const virusColor = "#ff0000"

type TrailPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"time"`
}

// PlayerState is the authoritative simulation entity for one participant.
// Exported fields are the wire contract; unexported fields never leave the
// server. Role and cooldown visibility is handled by snapshotFor, which is
// the only way a PlayerState should reach a broadcast payload.
type PlayerState struct {
	Id             string       `json:"id"`
	Username       string       `json:"username"`
	X              float64      `json:"x"`
	Y              float64      `json:"y"`
	Size           float64      `json:"size"`
	MaxSize        float64      `json:"maxSize"`
	Speed          float64      `json:"speed"`
	IsVirus        bool         `json:"isVirus"`
	IsAlive        bool         `json:"isAlive"`
	Energy         float64      `json:"energy"`
	MaxEnergy      float64      `json:"maxEnergy"`
	Experience     int          `json:"experience"`
	Level          int          `json:"level"`
	TasksCompleted int          `json:"tasksCompleted"`
	DataCollected  int          `json:"dataCollected"`
	CanDetectVirus bool         `json:"canDetectVirus"`
	Color          string       `json:"color"`
	KillCooldown   int64        `json:"killCooldown"`
	ImmuneUntil    int64        `json:"immuneUntil"`
	Trail          []TrailPoint `json:"trail"`

	paletteColor string
	killReadyAt  time.Time
	immuneUntil  time.Time
	lastActivity time.Time
}

func (ps *PlayerState) pushTrail(now time.Time) {
	ps.Trail = append(ps.Trail, TrailPoint{X: ps.X, Y: ps.Y, T: now.UnixMilli()})
	if len(ps.Trail) > trailCapacity {
		ps.Trail = ps.Trail[len(ps.Trail)-trailCapacity:]
	}
}

// snapshotFor returns a copy of ps as the viewer is allowed to see it.
// A player's role (and the red virus tint) is visible only to themselves,
// to fellow viruses and to the dead; everyone else sees a regular neuron.
func (ps *PlayerState) snapshotFor(viewer *PlayerState) PlayerState {
	snap := *ps
	snap.KillCooldown = ps.killReadyAt.UnixMilli()
	snap.ImmuneUntil = ps.immuneUntil.UnixMilli()

	if !ps.IsVirus || viewer == nil {
		return snap
	}
	if viewer.Id == ps.Id || viewer.IsVirus || !viewer.IsAlive {
		return snap
	}

	snap.IsVirus = false
	snap.Color = ps.paletteColor
	snap.KillCooldown = 0
	return snap
}
