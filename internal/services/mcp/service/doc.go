// Package service wires MCP transports to the ledger tools.
//
// It runs MCP over stdio or streamable HTTP and delegates tool behavior to
// the handlers in the MCP domain package.
package service
