// Package aggregates implements the channel and message aggregate contracts.
//
// Each write composes the table repos in internal/data/repos inside one
// transaction, under a per-channel lock, with a version check on the channel
// row. Notices are published only after the transaction commits.
package aggregates
