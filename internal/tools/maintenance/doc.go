// Package maintenance contains offline tooling for persisted ledger stores.
//
// -verify replays the notification journal from genesis and checks that the
// stored counter and every account's records match it. -export writes the
// counter, records, and journal as a YAML document.
package maintenance
