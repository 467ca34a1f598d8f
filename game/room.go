package game

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"codebreakers/domain"
)

type RoomPhase int

const (
	PHASE_WAITING RoomPhase = iota
	PHASE_PLAYING
	PHASE_ENDED
)

func (p RoomPhase) String() string {
	switch p {
	case PHASE_WAITING:
		return "waiting"
	case PHASE_PLAYING:
		return "playing"
	case PHASE_ENDED:
		return "ended"
	}
	return "unknown"
}

type RoomConfigs struct {
	MaxPlayers           int
	MinPlayersToStart    int
	GameDuration         time.Duration
	TickInterval         time.Duration
	VoteDuration         time.Duration
	MaxEmergencyMeetings int
	KillCooldown         time.Duration
	InitialKillCooldown  time.Duration
	ImmunityWindow       time.Duration
	BubbleRespawnDelay   time.Duration
	EndedGracePeriod     time.Duration
	InactivityTimeout    time.Duration

	// TimeExpiryDefersToOutnumber makes the clock running out re-check the
	// outnumber rule before defaulting the win to the neurons.
	TimeExpiryDefersToOutnumber bool
}

func DefaultRoomConfigs() RoomConfigs {
	return RoomConfigs{
		MaxPlayers:           12,
		MinPlayersToStart:    4,
		GameDuration:         5 * time.Minute,
		TickInterval:         50 * time.Millisecond,
		VoteDuration:         60 * time.Second,
		MaxEmergencyMeetings: 3,
		KillCooldown:         25 * time.Second,
		InitialKillCooldown:  30 * time.Second,
		ImmunityWindow:       5 * time.Second,
		BubbleRespawnDelay:   10 * time.Second,
		EndedGracePeriod:     30 * time.Second,
		InactivityTimeout:    5 * time.Minute,
	}
}

type roomJoinRequest struct {
	roomId  string
	player  Player
	errChan chan error
}

func NewRoomJoinRequest(roomId string, player Player) roomJoinRequest {
	return roomJoinRequest{roomId: roomId, player: player, errChan: make(chan error, 1)}
}

type roomDescription struct {
	id           string
	playersCount int
	maxPlayers   int
	phase        RoomPhase
}

// room owns one arena instance. Every mutation of its state happens inside
// GameLoop: joins, removals, inbound actions, pings and ticks are all
// delivered over channels and handled by the single actor goroutine, so no
// two actions (and no action concurrent with a tick) ever observe a partial
// state. Deferred effects (bubble respawns, the vote deadline, the one-second
// game clock, the post-game grace teardown) are due times checked on each
// tick rather than free-running timers, so nothing can fire into a room that
// has already been torn down.
type room struct {
	id       string
	configs  RoomConfigs
	phase    RoomPhase
	rng      *rand.Rand
	recorder GameRecorder

	parentLobby Lobby

	// simulation state, owned by the GameLoop goroutine
	now               time.Time
	world             *World
	synapses          []*Synapse
	bubbles           []*DataBubble
	players           []Player
	states            map[string]*PlayerState
	virusCount        int
	networkHealth     float64
	gameTime          int
	nextSecondAt      time.Time
	meeting           *meeting
	emergencyMeetings int
	teardownAt        time.Time

	inbox           chan ClientPacketEnvelope
	joinRequests    chan roomJoinRequest
	removalRequests chan Player
	pingRequests    chan struct{}
	quit            chan struct{}
	quitOnce        sync.Once
	tickerCreator   PeriodicTickerChannelCreator
}

func NewRoom(id string, configs RoomConfigs, recorder GameRecorder, tickerCreator PeriodicTickerChannelCreator, rng *rand.Rand) *room {
	world, synapses, bubbles := newWorld(rng)
	return &room{
		id:            id,
		configs:       configs,
		phase:         PHASE_WAITING,
		rng:           rng,
		recorder:      recorder,
		now:           time.Now(),
		world:         world,
		synapses:      synapses,
		bubbles:       bubbles,
		players:       make([]Player, 0, configs.MaxPlayers),
		states:        make(map[string]*PlayerState),
		networkHealth: 100,
		gameTime:      int(configs.GameDuration.Seconds()),

		inbox:           make(chan ClientPacketEnvelope, 1024),
		joinRequests:    make(chan roomJoinRequest, 16),
		removalRequests: make(chan Player, 64),
		pingRequests:    make(chan struct{}, 1),
		quit:            make(chan struct{}),
		tickerCreator:   tickerCreator,
	}
}

func (r *room) SetParentLobby(l Lobby) {
	r.parentLobby = l
}

func (r *room) Description() roomDescription {
	return roomDescription{
		id:           r.id,
		playersCount: len(r.players),
		maxPlayers:   r.configs.MaxPlayers,
		phase:        r.phase,
	}
}

func (r *room) RequestJoin(jreq roomJoinRequest) {
	// checked first so a closed room always answers not-found, even when
	// the join buffer still has space
	select {
	case <-r.quit:
		jreq.errChan <- ErrRoomNotFound
		return
	default:
	}

	select {
	case r.joinRequests <- jreq:
	case <-r.quit:
		jreq.errChan <- ErrRoomNotFound
	default:
		jreq.errChan <- ErrRoomFull
	}
}

func (r *room) Send(ctx context.Context, e ClientPacketEnvelope) {
	select {
	case r.inbox <- e:
	case <-r.quit:
	case <-ctx.Done():
	}
}

func (r *room) RemoveMe(ctx context.Context, p Player) {
	select {
	case r.removalRequests <- p:
	case <-r.quit:
	case <-ctx.Done():
	}
}

func (r *room) PingPlayers() {
	select {
	case r.pingRequests <- struct{}{}:
	default:
	}
}

// CloseAndRelease stops the GameLoop. The loop drops the remaining
// connections itself on the way out, so nothing here touches state the loop
// goroutine owns. Safe to call more than once.
func (r *room) CloseAndRelease() {
	r.quitOnce.Do(func() { close(r.quit) })
}

func (r *room) GameLoop() {
	ticks, stopTicker := r.tickerCreator.Create(r.configs.TickInterval)
	defer stopTicker()
	defer r.dropRemainingSessions()

	for {
		select {
		case <-r.quit:
			return

		case jreq := <-r.joinRequests:
			r.handleJoinRequest(jreq)

		case p := <-r.removalRequests:
			r.handleRemovePlayer(p)

		case env := <-r.inbox:
			r.handleClientPacket(env)

		case <-r.pingRequests:
			r.handlePingPlayers()

		case now := <-ticks:
			r.handleTick(now)
		}
	}
}

// dropRemainingSessions runs when the loop exits. Connections still attached
// are dropped and joins that raced the shutdown are refused, so nobody stays
// parked on a dead room. Identity reservations are returned by the lobby
// when it processes the removal.
func (r *room) dropRemainingSessions() {
	for _, p := range r.players {
		p.CancelAndRelease()
	}
	r.players = r.players[:0]

	for {
		select {
		case jreq := <-r.joinRequests:
			jreq.errChan <- ErrRoomNotFound
		default:
			return
		}
	}
}

func (r *room) handleJoinRequest(jreq roomJoinRequest) {
	p := jreq.player

	if r.phase == PHASE_ENDED {
		jreq.errChan <- ErrGameEnded
		return
	}

	if existing, ok := r.states[p.Id()]; ok {
		// Same identity on a fresh connection: kick the zombie session and
		// hand its entity to the newcomer.
		for i, old := range r.players {
			if old.Id() == p.Id() {
				old.CancelAndRelease()
				r.players[i] = p
				break
			}
		}
		p.SetRoom(r)
		jreq.errChan <- nil
		r.sendSnapshots()
		p.Send(marshalPacket(EventJoinSuccess, joinSuccessPayload{
			PlayerId: p.Id(),
			RoomId:   r.id,
			IsVirus:  existing.IsVirus,
		}))
		return
	}

	if len(r.players) >= r.configs.MaxPlayers {
		jreq.errChan <- ErrRoomFull
		return
	}

	color := playerPalette[len(r.players)%len(playerPalette)]
	state := &PlayerState{
		Id:       p.Id(),
		Username: p.Username(),
		// spawn inside the center 60% of the arena, never at the border
		X:            r.rng.Float64()*(r.world.Width*0.6) + r.world.Width*0.2,
		Y:            r.rng.Float64()*(r.world.Height*0.6) + r.world.Height*0.2,
		Size:         basePlayerSize,
		MaxSize:      basePlayerSize,
		Speed:        basePlayerSpeed,
		IsAlive:      true,
		Energy:       baseEnergy,
		MaxEnergy:    baseEnergy,
		Level:        1,
		Color:        color,
		Trail:        []TrailPoint{},
		paletteColor: color,
		immuneUntil:  r.now.Add(r.configs.ImmunityWindow),
		lastActivity: r.now,
	}

	r.states[p.Id()] = state
	r.players = append(r.players, p)
	p.SetRoom(r)
	jreq.errChan <- nil

	slog.Info("player joined room", "room_id", r.id, "player", p.Username(), "players", len(r.players))

	r.sendSnapshots()
	p.Send(marshalPacket(EventJoinSuccess, joinSuccessPayload{
		PlayerId: p.Id(),
		RoomId:   r.id,
		IsVirus:  false,
	}))
	r.updateLobbyDescription()
}

func (r *room) handleRemovePlayer(p Player) {
	idx := -1
	for i, existing := range r.players {
		if existing == p {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	r.players = append(r.players[:idx], r.players[idx+1:]...)
	if r.phase != PHASE_ENDED {
		// applied effects stay applied; only the entity itself goes away
		delete(r.states, p.Id())
	}
	if r.meeting != nil {
		delete(r.meeting.votes, p.Id())
	}

	p.CancelAndRelease()
	if r.parentLobby != nil {
		r.parentLobby.ReleaseIdentity(p.Id())
	}

	slog.Info("player left room", "room_id", r.id, "player", p.Username(), "players", len(r.players))

	if len(r.players) == 0 {
		r.requestTeardown()
		return
	}

	r.broadcastPerViewer(EventPlayerLeft, func(viewer *PlayerState) any {
		return playerLeftPayload{PlayerId: p.Id(), GameState: r.gameStateFor(viewer)}
	})
	r.updateLobbyDescription()

	if r.phase == PHASE_PLAYING {
		r.checkWinConditions()
	}
}

func (r *room) handleClientPacket(env ClientPacketEnvelope) {
	p := env.from
	state, ok := r.states[p.Id()]
	if !ok {
		slog.Debug("packet from player without entity", "room_id", r.id, "player", p.Id())
		return
	}
	state.lastActivity = r.now

	var err error

	switch env.clientPacket.Type {
	case ActionStartGame:
		err = r.startGame()

	case ActionPlayerMove:
		var mv movePayload
		if err = unmarshalPayload(env.clientPacket.Data, &mv); err == nil {
			err = r.applyMove(state, mv.X, mv.Y)
		}

	case ActionCompleteTask:
		var ct completeTaskPayload
		if err = unmarshalPayload(env.clientPacket.Data, &ct); err == nil {
			err = r.applyCompleteTask(state, ct.SynapseId)
		}

	case ActionCollectData:
		var cd collectDataPayload
		if err = unmarshalPayload(env.clientPacket.Data, &cd); err == nil {
			err = r.applyCollectData(state, cd.BubbleId)
		}

	case ActionKillPlayer:
		var kp killPayload
		if err = unmarshalPayload(env.clientPacket.Data, &kp); err == nil {
			err = r.applyKill(state, kp.VictimId)
		}

	case ActionCallEmergency:
		err = r.callEmergencyMeeting(state)

	case ActionVote:
		var vp votePayload
		if err = unmarshalPayload(env.clientPacket.Data, &vp); err == nil {
			err = r.castVote(p, state, vp.TargetId)
		}

	case ActionChatMessage:
		var cp chatPayload
		if err = unmarshalPayload(env.clientPacket.Data, &cp); err == nil {
			r.routeChatMessage(state, cp.Message)
		}

	case ActionPing:
		p.Send(marshalPacket(EventPong, nil))

	default:
		slog.Debug("unknown action kind", "room_id", r.id, "kind", env.clientPacket.Type)
	}

	if err != nil {
		slog.Debug("action refused",
			"room_id", r.id,
			"player", p.Username(),
			"kind", env.clientPacket.Type,
			"reason", err.Error(),
		)
	}
}

func (r *room) handlePingPlayers() {
	for _, p := range r.players {
		if err := p.Ping(); err != nil {
			slog.Debug("ping failed", "room_id", r.id, "player", p.Username())
		}
	}
}

func (r *room) handleTick(now time.Time) {
	r.now = now

	if r.phase == PHASE_ENDED {
		if !r.teardownAt.IsZero() && now.After(r.teardownAt) {
			r.requestTeardown()
		}
		return
	}

	r.advanceWorld()
	r.respawnDueBubbles()

	if r.phase == PHASE_PLAYING {
		if r.meeting != nil && now.After(r.meeting.deadline) {
			r.resolveVoting()
		}
	}

	if r.phase == PHASE_PLAYING {
		r.advanceClock()
	}

	if r.phase == PHASE_PLAYING {
		r.checkWinConditions()
	}

	if r.phase == PHASE_PLAYING {
		r.broadcast(marshalPacket(EventGameUpdate, gameUpdatePayload{
			DataBubbles:   r.uncollectedBubbles(),
			Synapses:      r.synapses,
			NetworkHealth: r.networkHealth,
			GameTime:      r.gameTime,
			World:         r.world,
		}))
	}
}

// advanceWorld moves drifting bubbles (bouncing at the arena edges) and
// advances animation phases. A synapse whose health reached zero goes
// inactive exactly once, costing network health.
func (r *room) advanceWorld() {
	for _, bubble := range r.bubbles {
		if bubble.Collected {
			continue
		}
		bubble.X += bubble.Drift.X
		bubble.Y += bubble.Drift.Y
		bubble.PulsePhase += 0.1

		if bubble.X < 0 || bubble.X > r.world.Width {
			bubble.Drift.X *= -1
		}
		if bubble.Y < 0 || bubble.Y > r.world.Height {
			bubble.Drift.Y *= -1
		}
	}

	for _, cell := range r.world.Cells {
		cell.PulsePhase += 0.05
	}

	for _, synapse := range r.synapses {
		synapse.PulseAnimation += 0.08

		if synapse.Health <= 0 && synapse.IsActive {
			synapse.IsActive = false
			r.adjustNetworkHealth(-synapseDecayPenalty)
		}
	}
}

func (r *room) respawnDueBubbles() {
	for _, bubble := range r.bubbles {
		if bubble.Collected && !bubble.respawnAt.IsZero() && r.now.After(bubble.respawnAt) {
			bubble.Collected = false
			bubble.respawnAt = time.Time{}
			bubble.X = r.rng.Float64() * r.world.Width
			bubble.Y = r.rng.Float64() * r.world.Height
		}
	}
}

func (r *room) advanceClock() {
	if r.nextSecondAt.IsZero() {
		return
	}
	for r.now.After(r.nextSecondAt) {
		r.nextSecondAt = r.nextSecondAt.Add(time.Second)
		r.gameTime--
		r.sweepInactivePlayers()
		if r.gameTime <= 0 {
			r.handleTimeExpiry()
			return
		}
	}
}

func (r *room) sweepInactivePlayers() {
	if r.configs.InactivityTimeout <= 0 {
		return
	}
	// collect first: handleRemovePlayer mutates r.players
	var inactive []Player
	for _, p := range r.players {
		state, ok := r.states[p.Id()]
		if !ok {
			continue
		}
		if r.now.Sub(state.lastActivity) > r.configs.InactivityTimeout {
			inactive = append(inactive, p)
		}
	}
	for _, p := range inactive {
		slog.Info("removing inactive player", "room_id", r.id, "player", p.Username())
		r.handleRemovePlayer(p)
	}
}

func (r *room) handleTimeExpiry() {
	if r.configs.TimeExpiryDefersToOutnumber {
		aliveViruses, aliveNeurons := r.aliveCounts()
		if aliveViruses > 0 && aliveViruses >= aliveNeurons {
			r.endGame(OutcomeVirusWin)
			return
		}
	}
	r.endGame(OutcomeNeuronWin)
}

func (r *room) startGame() error {
	if r.phase != PHASE_WAITING {
		return ErrInvalidAction
	}
	if len(r.players) < r.configs.MinPlayersToStart {
		return ErrInvalidAction
	}

	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		ids = append(ids, p.Id())
	}

	virusCount := len(ids) / 4
	if virusCount < 1 {
		virusCount = 1
	}

	for _, i := range r.rng.Perm(len(ids))[:virusCount] {
		virus := r.states[ids[i]]
		virus.IsVirus = true
		virus.Speed = virusSpeed
		virus.Color = virusColor
		virus.killReadyAt = r.now.Add(r.configs.InitialKillCooldown)
	}

	r.virusCount = virusCount
	r.phase = PHASE_PLAYING
	r.gameTime = int(r.configs.GameDuration.Seconds())
	r.nextSecondAt = r.now.Add(time.Second)

	slog.Info("game started", "room_id", r.id, "players", len(r.players), "viruses", virusCount)

	r.broadcastPerViewer(EventGameStarted, func(viewer *PlayerState) any {
		return r.gameStateFor(viewer)
	})
	r.updateLobbyDescription()
	return nil
}

func (r *room) endGame(outcome Outcome) {
	if r.phase == PHASE_ENDED {
		return
	}
	r.phase = PHASE_ENDED
	r.meeting = nil
	r.teardownAt = r.now.Add(r.configs.EndedGracePeriod)

	winner := "neuronsWin"
	if outcome == OutcomeVirusWin {
		winner = "virusWin"
	}

	slog.Info("game ended", "room_id", r.id, "winner", winner, "network_health", r.networkHealth)

	r.emitResults(outcome)

	players := make([]PlayerState, 0, len(r.states))
	for _, p := range r.players {
		if state, ok := r.states[p.Id()]; ok {
			players = append(players, state.snapshotFor(nil))
		}
	}

	r.broadcast(marshalPacket(EventGameEnded, gameEndedPayload{
		Winner:  winner,
		Players: players,
		Stats:   r.currentStats(),
	}))
	r.updateLobbyDescription()
}

// emitResults hands per-player result records to the stats collaborator.
// Fire-and-forget: a slow database must never delay a room's ticks.
func (r *room) emitResults(outcome Outcome) {
	if r.recorder == nil {
		return
	}

	results := make([]domain.PlayerResult, 0, len(r.states))
	for _, state := range r.states {
		won := (outcome == OutcomeVirusWin && state.IsVirus) ||
			(outcome == OutcomeNeuronWin && !state.IsVirus)
		results = append(results, domain.PlayerResult{
			UserId:         state.Id,
			Username:       state.Username,
			Won:            won,
			WasVirus:       state.IsVirus,
			TasksCompleted: state.TasksCompleted,
			DataCollected:  state.DataCollected,
		})
	}

	roomId := r.id
	recorder := r.recorder
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := recorder.RecordGameResults(ctx, roomId, results); err != nil {
			slog.Error("failed to record game results", "room_id", roomId, "error", err)
		}
	}()
}

func (r *room) currentStats() gameStats {
	completed := 0
	for _, s := range r.synapses {
		if s.Completed {
			completed++
		}
	}
	alive := 0
	for _, state := range r.states {
		if state.IsAlive {
			alive++
		}
	}
	return gameStats{
		NetworkHealth:  r.networkHealth,
		CompletedTasks: completed,
		TotalTasks:     len(r.synapses),
		PlayersAlive:   alive,
		TotalPlayers:   len(r.states),
		GameTime:       int(r.configs.GameDuration.Seconds()) - r.gameTime,
	}
}

func (r *room) checkWinConditions() {
	outcome := evaluateWin(r.states, r.virusCount, r.synapses, r.networkHealth)
	if outcome != OutcomeContinue {
		r.endGame(outcome)
	}
}

func (r *room) aliveCounts() (viruses int, neurons int) {
	for _, state := range r.states {
		if !state.IsAlive {
			continue
		}
		if state.IsVirus {
			viruses++
		} else {
			neurons++
		}
	}
	return viruses, neurons
}

func (r *room) adjustNetworkHealth(delta float64) {
	r.networkHealth += delta
	if r.networkHealth < 0 {
		r.networkHealth = 0
	}
	if r.networkHealth > 100 {
		r.networkHealth = 100
	}
}

func (r *room) uncollectedBubbles() []*DataBubble {
	visible := make([]*DataBubble, 0, len(r.bubbles))
	for _, b := range r.bubbles {
		if !b.Collected {
			visible = append(visible, b)
		}
	}
	return visible
}

func (r *room) gameStateFor(viewer *PlayerState) gameStatePayload {
	players := make([]PlayerState, 0, len(r.players))
	for _, p := range r.players {
		if state, ok := r.states[p.Id()]; ok {
			players = append(players, state.snapshotFor(viewer))
		}
	}
	return gameStatePayload{
		Id:            r.id,
		Players:       players,
		GameState:     r.phase.String(),
		Synapses:      r.synapses,
		DataBubbles:   r.uncollectedBubbles(),
		NetworkHealth: r.networkHealth,
		VirusCount:    r.virusCount,
		GameTime:      r.gameTime,
		World:         r.world,
		VotingPhase:   r.meeting != nil,
	}
}

func (r *room) sendSnapshots() {
	r.broadcastPerViewer(EventGameState, func(viewer *PlayerState) any {
		return r.gameStateFor(viewer)
	})
}

func (r *room) broadcast(data []byte) {
	for _, p := range r.players {
		p.Send(data)
	}
}

// broadcastPerViewer emits one payload per recipient so each player only
// sees what their role entitles them to.
func (r *room) broadcastPerViewer(eventType string, build func(viewer *PlayerState) any) {
	for _, p := range r.players {
		viewer := r.states[p.Id()]
		p.Send(marshalPacket(eventType, build(viewer)))
	}
}

func (r *room) sendToMatching(eventType string, payload any, include func(state *PlayerState) bool) {
	data := marshalPacket(eventType, payload)
	for _, p := range r.players {
		state, ok := r.states[p.Id()]
		if !ok || !include(state) {
			continue
		}
		p.Send(data)
	}
}

func (r *room) routeChatMessage(sender *PlayerState, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	if len(message) > 200 {
		message = message[:200]
	}

	chat := chatMessagePayload{
		PlayerId:  sender.Id,
		Username:  sender.Username,
		Message:   message,
		Timestamp: r.now.UnixMilli(),
		IsAlive:   sender.IsAlive,
		IsVirus:   sender.IsVirus,
	}

	switch {
	case !sender.IsAlive:
		// the dead only talk to the dead
		r.sendToMatching(EventChatMessage, chat, func(state *PlayerState) bool {
			return !state.IsAlive
		})

	case sender.IsVirus && r.phase == PHASE_PLAYING:
		r.sendToMatching(EventVirusChat, chat, func(state *PlayerState) bool {
			return state.IsVirus && state.IsAlive
		})

	case r.meeting != nil || r.phase != PHASE_PLAYING:
		r.broadcast(marshalPacket(EventChatMessage, chat))
	}
	// an alive neuron mid-game outside a meeting has no chat channel
}

func (r *room) updateLobbyDescription() {
	if r.parentLobby != nil {
		r.parentLobby.RequestUpdateDescription(r.Description())
	}
}

// requestTeardown drops whatever connections are left and asks the lobby to
// remove the room. Identity reservations are not returned here: the lobby
// releases everyone still mapped to this room when it handles the removal,
// which also covers joins that raced the teardown.
func (r *room) requestTeardown() {
	for _, p := range r.players {
		p.CancelAndRelease()
	}
	r.players = r.players[:0]
	if r.parentLobby != nil {
		r.parentLobby.RemoveRoom(r.id)
	}
}
