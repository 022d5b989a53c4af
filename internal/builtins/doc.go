// Package builtins provides the gateway's tool packs.
//
// # Tool Packs
//
// Faces Pack (builtin:faces) - requires "faces" capability:
//
//   - list_faces: Kinds and live faces, with absolute view URLs
//   - create_face: Create a face of a kind, returns faceId
//   - read_face: Record and status of one face
//   - destroy_face: Tear a face down (self is protected)
//
// Interaction Pack (builtin:interaction) - requires "faces" capability:
//
//   - interaction_start: Begin an interaction, returns interactionId
//   - interaction_await: Wait for and consume the result
//   - interaction_cancel: Cancel a pending interaction
//   - interaction_status: pending, completed, cancelled or unknown
//
// Ledger Pack (builtin:ledger) - requires "faces" capability:
//
//   - face_events: Persisted lifecycle history
//
// # Scope
//
// Handlers receive the face id bound by the caller's endpoint as scope.
// An explicit faceId argument always wins over the scope.
package builtins
