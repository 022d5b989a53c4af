// Package reconcile converges declared instance records toward running
// machines.
//
// Each instance is a JSON record in a directory. Operators change the
// desired state (running or stopped) and kick the reconciler; the
// reconciler starts or stops machines through a Provider and writes back
// the actual state. Kicks for one instance go through a coalescing queue,
// so a burst of kicks costs at most the pass in flight plus one more.
//
// The daemon exposes POST /kick/{id} (add ?wait=true to block until the
// pass finishes), GET /instances, GET /instances/{id} and GET /health, and
// optionally watches the records directory so edits made elsewhere
// converge on their own.
package reconcile
