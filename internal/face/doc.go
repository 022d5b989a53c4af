// Package face defines live interactive sessions ("faces") and the
// registry that creates, lists, reads and destroys them.
//
// # Kinds
//
// A Kind pairs an id with a Factory. The registry always carries the
// synthetic self kind, whose single live face represents the hosting
// process. Self cannot be instantiated, destroyed or driven.
//
// # Homes and workspaces
//
// A new face's home is the explicit path from the request, else the
// FACE_HOME environment variable, else a fresh directory under the
// configured base. Paths starting with "~" are rejected. The workspace
// defaults to the process working directory.
//
// # Base
//
// Base implements the interaction half of Face over interaction.Tasks.
// Kinds with slow setup call Initialising and complete it later; Status
// and every interaction wait for that.
package face
