package domain

import "time"

// grpcCallTimeout caps the time for a single ledger call from an MCP tool handler.
const grpcCallTimeout = 5 * time.Second

// grpcLongCallTimeout caps calls that stream a whole account history.
const grpcLongCallTimeout = 10 * time.Second
