// Package store persists the face lifecycle ledger using SQLite.
//
// The live registry is in memory only; the ledger records what happened
// to faces (created, create_failed, destroyed) so operators can inspect
// history after faces are gone or the gateway restarted.
//
//	s, err := store.NewSQLiteStore("~/.local/share/face/ledger.db")
//	reg, err := face.NewRegistry(face.RegistryConfig{Ledger: s, ...})
//
// MockStore is an in-memory implementation with the same ordering rules,
// for tests in other packages.
package store
