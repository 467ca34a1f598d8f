package game

import (
	"math"
	"math/rand"
	"time"
)

const (
	worldWidth  = 1400.0
	worldHeight = 900.0

	synapseCount    = 8
	dataBubbleCount = 35
	neuralCellCount = 15

	synapseMaxHealth     = 100.0
	synapseSize          = 30.0
	synapseMarginX       = 100.0
	synapseInteractRange = 60.0
)

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type synapseType struct {
	Name  string
	Icon  string
	Color string
}

var synapseTypes = []synapseType{
	{"firewall", "🛡️", "#ff4444"},
	{"connection", "🔗", "#44ff44"},
	{"memory", "💾", "#4444ff"},
	{"processing", "⚡", "#ffff44"},
	{"repair", "🔧", "#ff44ff"},
	{"sync", "🔄", "#44ffff"},
}

type bubbleType struct {
	Name  string
	Icon  string
	Color string
	Value int
}

var bubbleTypes = []bubbleType{
	{"protein", "🧬", "#00ff88", 2},
	{"glucose", "⚡", "#ffaa00", 1},
	{"oxygen", "💨", "#00aaff", 1},
	{"neurotransmitter", "✨", "#aa00ff", 3},
}

var neuronTypes = []string{"dendrite", "axon", "soma"}

// Synapse is a fixed task station. Progress only ever increases, and
// Completed flips false→true exactly once. A synapse whose health hits zero
// goes inactive but is never removed mid-game.
type Synapse struct {
	Id              int      `json:"id"`
	X               float64  `json:"x"`
	Y               float64  `json:"y"`
	Type            string   `json:"type"`
	Icon            string   `json:"icon"`
	Color           string   `json:"color"`
	Health          float64  `json:"health"`
	MaxHealth       float64  `json:"maxHealth"`
	Completed       bool     `json:"completed"`
	Progress        float64  `json:"progress"`
	Workers         []string `json:"workers"`
	PulseAnimation  float64  `json:"pulseAnimation"`
	Size            float64  `json:"size"`
	IsActive        bool     `json:"isActive"`
	RequiredPlayers int      `json:"requiredPlayers"`
}

// DataBubble is a drifting pickup. collected and respawnAt together schedule
// its reappearance: the room's tick loop respawns it at a fresh position
// once the due time passes.
type DataBubble struct {
	Id         int     `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Size       float64 `json:"size"`
	Value      int     `json:"value"`
	Collected  bool    `json:"collected"`
	Type       string  `json:"type"`
	Icon       string  `json:"icon"`
	Color      string  `json:"color"`
	Drift      Vec2    `json:"drift"`
	PulsePhase float64 `json:"pulsePhase"`

	respawnAt time.Time
}

// NeuralCell is decorative scenery; it only animates.
type NeuralCell struct {
	Id          int     `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Size        float64 `json:"size"`
	PulsePhase  float64 `json:"pulsePhase"`
	Connections []int   `json:"connections"`
	Health      float64 `json:"health"`
	IsActive    bool    `json:"isActive"`
	NeuronType  string  `json:"neuronType"`
}

type World struct {
	Width  float64       `json:"width"`
	Height float64       `json:"height"`
	Cells  []*NeuralCell `json:"cells"`
}

// newWorld generates the static arena contents. All randomness goes through
// rng so tests can substitute a fixed seed.
func newWorld(rng *rand.Rand) (*World, []*Synapse, []*DataBubble) {
	world := &World{
		Width:  worldWidth,
		Height: worldHeight,
		Cells:  generateNeuralCells(rng),
	}
	return world, generateSynapses(rng), generateDataBubbles(rng)
}

func generateSynapses(rng *rand.Rand) []*Synapse {
	synapses := make([]*Synapse, 0, synapseCount)
	for i := 0; i < synapseCount; i++ {
		st := synapseTypes[rng.Intn(len(synapseTypes))]
		synapses = append(synapses, &Synapse{
			Id:              i,
			X:               rng.Float64()*(worldWidth-2*synapseMarginX) + synapseMarginX,
			Y:               rng.Float64()*(worldHeight-2*synapseMarginX) + synapseMarginX,
			Type:            st.Name,
			Icon:            st.Icon,
			Color:           st.Color,
			Health:          synapseMaxHealth,
			MaxHealth:       synapseMaxHealth,
			Progress:        0,
			Workers:         []string{},
			PulseAnimation:  rng.Float64() * math.Pi * 2,
			Size:            synapseSize,
			IsActive:        true,
			RequiredPlayers: rng.Intn(3) + 1,
		})
	}
	return synapses
}

func generateDataBubbles(rng *rand.Rand) []*DataBubble {
	bubbles := make([]*DataBubble, 0, dataBubbleCount)
	for i := 0; i < dataBubbleCount; i++ {
		bt := bubbleTypes[rng.Intn(len(bubbleTypes))]
		bubbles = append(bubbles, &DataBubble{
			Id:         i,
			X:          rng.Float64() * worldWidth,
			Y:          rng.Float64() * worldHeight,
			Size:       rng.Float64()*8 + 4,
			Value:      bt.Value,
			Collected:  false,
			Type:       bt.Name,
			Icon:       bt.Icon,
			Color:      bt.Color,
			Drift:      Vec2{X: (rng.Float64() - 0.5) * 1.2, Y: (rng.Float64() - 0.5) * 1.2},
			PulsePhase: rng.Float64() * math.Pi * 2,
		})
	}
	return bubbles
}

func generateNeuralCells(rng *rand.Rand) []*NeuralCell {
	cells := make([]*NeuralCell, 0, neuralCellCount)
	for i := 0; i < neuralCellCount; i++ {
		cells = append(cells, &NeuralCell{
			Id:          i,
			X:           rng.Float64() * worldWidth,
			Y:           rng.Float64() * worldHeight,
			Size:        rng.Float64()*80 + 40,
			PulsePhase:  rng.Float64() * math.Pi * 2,
			Connections: []int{},
			Health:      100,
			IsActive:    true,
			NeuronType:  neuronTypes[rng.Intn(len(neuronTypes))],
		})
	}
	return cells
}
