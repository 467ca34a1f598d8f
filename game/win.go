package game

type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeVirusWin
	OutcomeNeuronWin
)

const taskWinFraction = 0.8

// evaluateWin checks the victory rules in a fixed order, so that on a tick
// where several rules hold at once the earlier rule decides the winner:
//
//  1. alive viruses match or outnumber alive neurons -> viruses win
//  2. no virus left alive -> neurons win
//  3. at least 80% of synapses completed -> neurons win
//  4. network health exhausted -> viruses win
//
// The clock expiring is handled by the room separately, after these.
func evaluateWin(states map[string]*PlayerState, virusCount int, synapses []*Synapse, networkHealth float64) Outcome {
	if virusCount == 0 {
		return OutcomeContinue
	}

	aliveViruses, aliveNeurons := 0, 0
	for _, state := range states {
		if !state.IsAlive {
			continue
		}
		if state.IsVirus {
			aliveViruses++
		} else {
			aliveNeurons++
		}
	}

	if aliveViruses > 0 && aliveViruses >= aliveNeurons {
		return OutcomeVirusWin
	}
	if aliveViruses == 0 {
		return OutcomeNeuronWin
	}

	if len(synapses) > 0 {
		completed := 0
		for _, s := range synapses {
			if s.Completed {
				completed++
			}
		}
		if float64(completed) >= float64(len(synapses))*taskWinFraction {
			return OutcomeNeuronWin
		}
	}

	if networkHealth <= 0 {
		return OutcomeVirusWin
	}

	return OutcomeContinue
}
