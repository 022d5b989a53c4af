// Package interaction implements the start/await/cancel/status protocol
// shared by every face kind.
//
// An interaction moves pending -> completed when its runner returns, or
// pending -> cancelled through Cancel. Nothing leaves a terminal state.
// Await consumes the record: a second Await on the same id reports
// ErrUnknown. Status never consumes and reports StateUnknown for ids that
// are not live.
package interaction
