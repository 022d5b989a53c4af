// Package gateway orchestrates the face-gateway server components.
//
// # Overview
//
// The gateway owns the face registry, the idle trigger, the ledger store,
// the tool packs behind the MCP endpoint, and the gRPC face service. It
// listens on plain TCP or, when configured, on a tailnet via tsnet.
//
// # Endpoints
//
//   - gRPC faces.v1.FaceService (JSON codec)
//   - POST/DELETE /mcp and /mcp/faces/{faceId}
//   - GET /health - liveness
//   - GET /health/ready - 503 once shutdown has begun
//
// # Idle Shutdown
//
// Every gRPC call and HTTP request is bracketed by the idle trigger. When
// nothing has been in flight for idle.timeout, Run returns after a
// graceful shutdown that destroys all live faces.
package gateway
