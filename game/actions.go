package game

import "math"

const (
	moveTolerance = 5.0

	taskProgressIncrement  = 2.0
	taskXP                 = 10
	taskCompletionBonusXP  = 25
	taskNetworkHealthBonus = 15.0

	collectEnergyFactor     = 5.0
	collectXPFactor         = 2
	collectSizeCapPerLevel  = 2.0
	virusCollectEnergyBonus = 3.0
	virusCollectHealthCost  = 1.0

	killReach           = 10.0
	killSizeGain        = 5.0
	killXP              = 50
	killNetworkPenalty  = 10.0
	synapseDecayPenalty = 5.0
	levelXPStep         = 100
)

func distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// applyMove validates a requested position against the mover's speed and the
// arena bounds, then commits it and tells everyone else. A hop longer than
// speed plus a small lag tolerance is refused outright rather than clamped to
// the direction of travel, so a cheating client gains nothing by spamming.
func (r *room) applyMove(state *PlayerState, x, y float64) error {
	if r.phase != PHASE_PLAYING {
		return ErrInvalidAction
	}
	if !state.IsAlive {
		return ErrInvalidAction
	}

	if distance(state.X, state.Y, x, y) > state.Speed+moveTolerance {
		return ErrOutOfRange
	}

	state.X = math.Max(0, math.Min(r.world.Width, x))
	state.Y = math.Max(0, math.Min(r.world.Height, y))
	state.pushTrail(r.now)

	moved := marshalPacket(EventPlayerMoved, playerMovedPayload{
		PlayerId: state.Id,
		X:        state.X,
		Y:        state.Y,
	})
	for _, p := range r.players {
		if p.Id() != state.Id {
			p.Send(moved)
		}
	}
	return nil
}

// applyCompleteTask advances a synapse by one work increment. Only alive
// neurons in interaction range of an active, incomplete synapse make
// progress; hitting full progress completes the synapse once, restores its
// health, heals the network and pays out experience to everyone who worked
// on it.
func (r *room) applyCompleteTask(state *PlayerState, synapseId int) error {
	if r.phase != PHASE_PLAYING {
		return ErrInvalidAction
	}
	if !state.IsAlive || state.IsVirus {
		return ErrUnauthorized
	}

	synapse := r.findSynapse(synapseId)
	if synapse == nil {
		return ErrInvalidAction
	}
	if synapse.Completed {
		return ErrAlreadyResolved
	}
	if !synapse.IsActive {
		return ErrInvalidAction
	}
	if distance(state.X, state.Y, synapse.X, synapse.Y) > synapseInteractRange {
		return ErrOutOfRange
	}

	synapse.Progress += taskProgressIncrement
	if !containsString(synapse.Workers, state.Id) {
		synapse.Workers = append(synapse.Workers, state.Id)
	}
	state.Experience += taskXP

	if synapse.Progress >= 100 {
		synapse.Progress = 100
		synapse.Completed = true
		synapse.Health = synapse.MaxHealth
		r.adjustNetworkHealth(taskNetworkHealthBonus)

		for _, workerId := range synapse.Workers {
			worker, ok := r.states[workerId]
			if !ok {
				continue
			}
			worker.TasksCompleted++
			worker.Experience += taskCompletionBonusXP
			r.checkLevelUp(worker)
		}

		r.broadcastPerViewer(EventTaskCompleted, func(viewer *PlayerState) any {
			return taskCompletedPayload{
				SynapseId: synapse.Id,
				PlayerId:  state.Id,
				GameState: r.gameStateFor(viewer),
			}
		})

		r.checkWinConditions()
		return nil
	}

	r.checkLevelUp(state)
	return nil
}

// applyCollectData consumes a data bubble. Everyone earns the base energy,
// size and experience for it; a virus collector grows extra on top and the
// network pays for the drain. The bubble is scheduled to respawn later at a
// fresh position.
func (r *room) applyCollectData(state *PlayerState, bubbleId int) error {
	if r.phase != PHASE_PLAYING {
		return ErrInvalidAction
	}
	if !state.IsAlive {
		return ErrInvalidAction
	}

	bubble := r.findBubble(bubbleId)
	if bubble == nil {
		return ErrInvalidAction
	}
	if bubble.Collected {
		return ErrAlreadyResolved
	}
	if distance(state.X, state.Y, bubble.X, bubble.Y) > state.Size+bubble.Size {
		return ErrOutOfRange
	}

	bubble.Collected = true
	bubble.respawnAt = r.now.Add(r.configs.BubbleRespawnDelay)

	value := float64(bubble.Value)
	sizeCap := state.MaxSize + float64(state.Level)*collectSizeCapPerLevel
	state.Size = math.Min(sizeCap, state.Size+value)
	state.Energy = math.Min(state.MaxEnergy, state.Energy+value*collectEnergyFactor)
	state.Experience += bubble.Value * collectXPFactor
	state.DataCollected += bubble.Value

	if state.IsVirus {
		state.Size += value
		state.Energy += value * virusCollectEnergyBonus
		r.adjustNetworkHealth(-virusCollectHealthCost)
	}
	r.checkLevelUp(state)

	r.broadcastPerViewer(EventDataCollected, func(viewer *PlayerState) any {
		return dataCollectedPayload{
			BubbleId:  bubble.Id,
			PlayerId:  state.Id,
			GameState: r.gameStateFor(viewer),
		}
	})
	return nil
}

// applyKill eliminates a victim in reach. Refusal order matters: identity
// and liveness first, then the killer's cooldown, then the victim's spawn
// immunity, then range. On success the virus grows, the cooldown restarts
// and the network takes damage.
func (r *room) applyKill(state *PlayerState, victimId string) error {
	if r.phase != PHASE_PLAYING {
		return ErrInvalidAction
	}
	if !state.IsVirus || !state.IsAlive {
		return ErrUnauthorized
	}
	if victimId == state.Id {
		return ErrInvalidAction
	}

	victim, ok := r.states[victimId]
	if !ok {
		return ErrInvalidAction
	}
	if !victim.IsAlive {
		return ErrInvalidAction
	}
	if r.now.Before(state.killReadyAt) {
		return ErrCooldownActive
	}
	if r.now.Before(victim.immuneUntil) {
		return ErrImmune
	}
	if distance(state.X, state.Y, victim.X, victim.Y) > state.Size+victim.Size+killReach {
		return ErrOutOfRange
	}

	victim.IsAlive = false
	state.Size += killSizeGain
	state.Experience += killXP
	state.killReadyAt = r.now.Add(r.configs.KillCooldown)
	r.adjustNetworkHealth(-killNetworkPenalty)
	r.checkLevelUp(state)

	r.broadcastPerViewer(EventPlayerKilled, func(viewer *PlayerState) any {
		return playerKilledPayload{
			VirusId:   state.Id,
			VictimId:  victim.Id,
			GameState: r.gameStateFor(viewer),
		}
	})

	r.checkWinConditions()
	return nil
}

// checkLevelUp applies as many pending level-ups as the accumulated
// experience affords. Neurons reaching level three can see through the
// virus disguise.
func (r *room) checkLevelUp(state *PlayerState) {
	for state.Experience >= state.Level*levelXPStep {
		state.Experience -= state.Level * levelXPStep
		state.Level++
		state.MaxSize += levelUpSizeGain
		state.MaxEnergy += levelUpEnergyGain
		state.Speed += levelUpSpeedGain

		if !state.IsVirus && state.Level >= detectVirusLevel {
			state.CanDetectVirus = true
		}
	}
}

func (r *room) findSynapse(id int) *Synapse {
	for _, s := range r.synapses {
		if s.Id == id {
			return s
		}
	}
	return nil
}

func (r *room) findBubble(id int) *DataBubble {
	for _, b := range r.bubbles {
		if b.Id == id {
			return b
		}
	}
	return nil
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
