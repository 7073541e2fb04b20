package domain

// DerivedTurnState is the per-client view computed from membership and the
// action ledger. It is never stored; every reconciliation recomputes it so
// cached copies cannot diverge from the source of truth.
type DerivedTurnState struct {
	// ActionsSubmitted counts distinct users with a ledger row for the current turn.
	ActionsSubmitted int
	// PlayersReady counts player-role members flagged ready.
	PlayersReady int
	// TotalPlayers counts player-role members.
	TotalPlayers int
}

// ComputeDerivedTurnState derives turn progress from membership and the
// current turn's ledger entries. Actions for other turns are ignored.
func ComputeDerivedTurnState(members []Member, actions []TurnAction, currentTurn int) DerivedTurnState {
	var derived DerivedTurnState
	for _, member := range members {
		if !member.Role.IsPlayer() {
			continue
		}
		derived.TotalPlayers++
		if member.Ready {
			derived.PlayersReady++
		}
	}

	seen := make(map[string]struct{}, len(actions))
	for _, action := range actions {
		if action.TurnNumber != currentTurn {
			continue
		}
		if _, dup := seen[action.UserID]; dup {
			continue
		}
		seen[action.UserID] = struct{}{}
		derived.ActionsSubmitted++
	}

	return derived
}

// AllActionsIn reports whether every player has submitted for the current turn.
// It is a UI gate only; phase transitions never assume it was honored.
func (d DerivedTurnState) AllActionsIn() bool {
	return d.TotalPlayers > 0 && d.ActionsSubmitted >= d.TotalPlayers
}
