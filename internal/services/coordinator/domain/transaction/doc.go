// Package transaction provides the multi-party transaction aggregate.
//
// A transaction names a set of parties and assets. It collects one signature
// per party, then becomes executable. Commands are checked by Decide against
// the current State and produce Events; Fold replays those events into the
// next State. Neither function performs I/O: compliance checks, ledger
// mutations and persistence belong to the coordinator service.
//
// # Lifecycle
//
//	CREATED -> PENDING -> APPROVED -> EXECUTED
//
// CREATED moves straight to APPROVED when the creator is the only party.
// CREATED, PENDING and APPROVED may be cancelled or expire; CREATED and
// PENDING may be rejected by a party that has not signed. REJECTED and
// EXPIRED transactions can still be cancelled. EXECUTED and CANCELLED are
// final.
//
// # Expiry
//
// Expiry is lazy. EffectiveStatus reports EXPIRED once the clock passes
// ExpiresAt, while the stored status only changes when an Expire command is
// accepted.
package transaction
