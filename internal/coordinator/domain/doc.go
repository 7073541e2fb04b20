// Package domain defines the entities and pure rules of the multiplayer
// session coordinator: sessions and their turn phases, membership records,
// per-turn action entries, derived turn state, and the start-game readiness
// evaluation.
//
// Everything in this package is deterministic. Constructors take injected
// clocks and ID generators so write-path decisions stay reproducible; nothing
// here touches storage or the network.
package domain
