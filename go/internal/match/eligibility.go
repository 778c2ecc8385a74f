package match

// roster is the view of a room that the elimination rules work on. The rules
// run inside a room transition, so the room lock is already held.
type roster interface {
	// slottedPlayers returns the team's slotted players in slot order.
	slottedPlayers(team Team) []*Player
}

// Picker returns a uniformly random index in [0, n).
type Picker func(n int) int

// eligibleTargets returns the ids of the opponents of team that a correct
// answerer may kill, in slot order.
//
// Players holding more than one buzz are preferred. Only when every candidate
// is down to exactly one buzz do they all become eligible.
func eligibleTargets(src roster, team Team) []string {
	pool := eliminationPool(src.slottedPlayers(team.Opponent()))
	ids := make([]string, 0, len(pool))
	for _, p := range pool {
		ids = append(ids, p.ID)
	}
	return ids
}

// randomEliminate removes one buzz from a random player on team, using the
// same preference as eligibleTargets. It reports the affected player, or false
// when nobody on the team has a buzz to lose.
func randomEliminate(src roster, team Team, pick Picker) (string, bool) {
	pool := eliminationPool(src.slottedPlayers(team))
	if len(pool) == 0 {
		return "", false
	}

	target := pool[pick(len(pool))]
	target.BuzzesRemaining--
	return target.ID, true
}

func eliminationPool(players []*Player) []*Player {
	var spare, last []*Player
	for _, p := range players {
		switch {
		case p.BuzzesRemaining > 1:
			spare = append(spare, p)
		case p.BuzzesRemaining == 1:
			last = append(last, p)
		}
	}
	if len(spare) > 0 {
		return spare
	}
	return last
}
