// Package packs groups in-process tools into packs and routes calls to them.
//
// # Architecture
//
//   - Registry: Tracks builtin packs and their tools, rejects name collisions
//   - Router: Runs a tool by name with a timeout and reports the result
//   - Built-in packs: see internal/builtins
//
// # Tool Routing
//
// When a caller invokes a tool, the router:
//
//  1. Looks up the tool by name in the registry
//  2. Applies the tool's timeout (or DefaultTimeout)
//  3. Calls the handler with the caller's scope
//  4. Wraps output or failure in a ToolResult
//
// Handler errors are results, not routing errors: they reach the caller as
// tool errors. Only unknown tools and expired contexts are returned as Go
// errors.
//
// # Capabilities
//
// Tools may declare RequiredCapabilities. GetToolsForCapabilities returns
// tools whose requirements the caller meets; tools without requirements
// are always included.
package packs
