// Package integrity provides the hash and signing helpers behind the
// tamper-evident audit trail.
//
// Each stored audit event carries a content hash of its canonical envelope.
// Consecutive events of one transaction are linked through a chain hash that
// folds in the sequence number and the previous chain hash, and every chain
// hash is signed with an HMAC key derived per transaction.
package integrity
