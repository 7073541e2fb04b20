package domain

import "fmt"

const (
	// RejectionCodeStartAlreadyStarted indicates the session already left the idle phase.
	RejectionCodeStartAlreadyStarted = "START_ALREADY_STARTED"
	// RejectionCodeStartPlayersRequired indicates the minimum player count is not met.
	RejectionCodeStartPlayersRequired = "START_PLAYERS_REQUIRED"
	// RejectionCodeStartPlayersUnready indicates joined players have not all readied up.
	RejectionCodeStartPlayersUnready = "START_PLAYERS_UNREADY"
)

// StartCheck reports whether a session may start and, when it may not, why.
// The reason is surfaced verbatim to the host; it must stay operator-readable.
type StartCheck struct {
	CanStart    bool
	Code        string
	Reason      string
	PlayerCount int
	ReadyCount  int
	MinPlayers  int
}

// EvaluateStartGame evaluates the invariants gating start-game:
//  1. the session is still in its pre-start idle phase,
//  2. at least MinPlayers player-role members have joined,
//  3. every joined player has flagged ready.
//
// The checks are deterministic and run only against the supplied records so
// the decision does not depend on notification freshness.
func EvaluateStartGame(sess Session, members []Member) StartCheck {
	minPlayers := sess.Settings.MinPlayers
	if minPlayers <= 0 {
		minPlayers = DefaultMinPlayers
	}

	var playerCount, readyCount int
	for _, member := range members {
		if !member.Role.IsPlayer() {
			continue
		}
		playerCount++
		if member.Ready {
			readyCount++
		}
	}

	check := StartCheck{
		PlayerCount: playerCount,
		ReadyCount:  readyCount,
		MinPlayers:  minPlayers,
	}

	if sess.TurnPhase != TurnPhaseIdle {
		check.Code = RejectionCodeStartAlreadyStarted
		check.Reason = "session has already started"
		return check
	}
	if playerCount < minPlayers {
		missing := minPlayers - playerCount
		check.Code = RejectionCodeStartPlayersRequired
		if missing == 1 {
			check.Reason = "cannot start: need 1 more player"
		} else {
			check.Reason = fmt.Sprintf("cannot start: need %d more players", missing)
		}
		return check
	}
	if readyCount < playerCount {
		check.Code = RejectionCodeStartPlayersUnready
		check.Reason = fmt.Sprintf("cannot start: waiting for %d of %d players to ready up", playerCount-readyCount, playerCount)
		return check
	}

	check.CanStart = true
	return check
}
