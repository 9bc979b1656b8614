// Package grpc hosts the ledger's gRPC transport: the hand-registered
// ledger.v1.LedgerService (ledger), request metadata propagation (metadata),
// caller authentication (auth), and host-level throttling (interceptors).
package grpc
