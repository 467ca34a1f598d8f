package game

import "time"

// meeting is the state of one emergency vote. votes maps voter id to target
// id; an empty target is a recorded abstention. The room resolves the
// meeting when its deadline passes.
type meeting struct {
	callerId string
	deadline time.Time
	votes    map[string]string
}

func (r *room) callEmergencyMeeting(caller *PlayerState) error {
	if r.phase != PHASE_PLAYING {
		return ErrInvalidAction
	}
	if !caller.IsAlive {
		return ErrUnauthorized
	}
	if r.meeting != nil {
		return ErrAlreadyResolved
	}
	if r.emergencyMeetings >= r.configs.MaxEmergencyMeetings {
		return ErrInvalidAction
	}

	r.emergencyMeetings++
	r.meeting = &meeting{
		callerId: caller.Id,
		deadline: r.now.Add(r.configs.VoteDuration),
		votes:    make(map[string]string),
	}

	options := make([]voteOption, 0, len(r.players))
	for _, p := range r.players {
		if state, ok := r.states[p.Id()]; ok && state.IsAlive {
			options = append(options, voteOption{Id: state.Id, Username: state.Username})
		}
	}

	r.broadcast(marshalPacket(EventVotingStarted, votingStartedPayload{
		Caller:       caller.Username,
		AlivePlayers: options,
		VotingTime:   int(r.configs.VoteDuration.Seconds()),
	}))
	return nil
}

// castVote records or replaces the voter's choice. Dead players cannot vote
// and dead players cannot be voted for; an empty target is a skip. The
// meeting only resolves when the countdown runs out, so a ballot can be
// revised right up to the deadline even after everyone has voted.
func (r *room) castVote(voter Player, state *PlayerState, targetId string) error {
	if r.meeting == nil {
		return ErrInvalidAction
	}
	if !state.IsAlive {
		return ErrUnauthorized
	}

	if targetId != "" {
		target, ok := r.states[targetId]
		if !ok || !target.IsAlive {
			return ErrInvalidAction
		}
	}

	r.meeting.votes[state.Id] = targetId
	voter.Send(marshalPacket(EventVoteAccepted, voteRegisteredPayload{TargetId: targetId}))
	return nil
}

// resolveVoting tallies the meeting. A player is ejected only when they hold
// a strict plurality (no tie for first place) that also exceeds half of the
// alive players; skips count toward turnout but never toward a target.
func (r *room) resolveVoting() {
	if r.meeting == nil {
		return
	}

	tally := make(map[string]int)
	for _, targetId := range r.meeting.votes {
		if targetId != "" {
			tally[targetId]++
		}
	}
	r.meeting = nil

	topId, topVotes, tied := "", 0, false
	for targetId, count := range tally {
		switch {
		case count > topVotes:
			topId, topVotes, tied = targetId, count, false
		case count == topVotes:
			tied = true
		}
	}

	alive := r.aliveTotal()
	if topId == "" || tied || topVotes*2 <= alive {
		reason := "tie"
		if topId == "" {
			reason = "no votes"
		} else if !tied {
			reason = "no majority"
		}
		r.broadcast(marshalPacket(EventNoEjection, noEjectionPayload{Reason: reason}))
		return
	}

	ejected, ok := r.states[topId]
	if !ok {
		r.broadcast(marshalPacket(EventNoEjection, noEjectionPayload{Reason: "player gone"}))
		return
	}

	ejected.IsAlive = false

	// the reveal is public: everyone learns the ejected player's true role
	r.broadcast(marshalPacket(EventPlayerEjected, playerEjectedPayload{
		Player:   ejected.snapshotFor(nil),
		WasVirus: ejected.IsVirus,
		Votes:    topVotes,
	}))

	r.checkWinConditions()
}

func (r *room) aliveTotal() int {
	alive := 0
	for _, state := range r.states {
		if state.IsAlive {
			alive++
		}
	}
	return alive
}
