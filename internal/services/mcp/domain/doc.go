// Package domain translates MCP tool calls into ledger operations.
//
// Each tool parses its input, calls the ledger through the Ledger interface,
// and returns a structured result plus a short localized summary that MCP
// clients can show as-is.
package domain
