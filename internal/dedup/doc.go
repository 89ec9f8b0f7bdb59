// Package dedup provides a generic create-or-skip engine for identity-bearing
// records.
//
// The engine answers one question for a candidate record: does a record with
// the same identity already exist? If so it returns the existing record with
// reason "pre-existed"; otherwise it inserts the candidate and returns the
// stored record with reason "new". Identity is defined entirely by the
// backing Store, which maps storage uniqueness violations to ErrDuplicate.
//
// The engine never locks. Concurrent callers racing on the same identity are
// resolved by the store's uniqueness constraint: the loser's insert fails
// with ErrDuplicate, the engine re-reads, and both callers observe the same
// record (one "new", one "pre-existed").
//
// Append-only engines skip the existence check entirely and always insert.
package dedup
