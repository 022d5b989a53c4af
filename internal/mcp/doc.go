// Package mcp implements the Model Context Protocol server for the face tools.
//
// # Protocol
//
// JSON-RPC 2.0 over the Streamable HTTP transport. Each POST carries one
// message; notifications are answered with 202 and no body. Server
// initiated streams are not offered.
//
//   - POST /mcp - every tool; face tools need an explicit faceId
//   - POST /mcp/faces/<faceId> - same tools, faceId defaults to <faceId>
//   - DELETE /mcp - terminate the session named by Mcp-Session-Id
//
// Other methods on these paths get 405.
//
// # Sessions
//
// initialize creates a session and returns its id in the Mcp-Session-Id
// header. Every later request must carry it. Sessions remember the face
// scope of the endpoint they were created on. Sessions unused for an hour
// are forgotten and the client has to initialize again.
//
// # Tool Execution
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "interaction_start",
//	    "arguments": {"input": "ls"}
//	  },
//	  "id": 2
//	}
//
// Tool failures (unknown face, closed face, unknown interaction) come back
// as results with isError set. JSON-RPC errors are reserved for protocol
// problems, unknown tools and timeouts.
package mcp
