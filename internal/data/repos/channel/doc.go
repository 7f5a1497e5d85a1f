// Package channel holds the table repos behind the channel and message aggregates.
//
// Every method takes a dbctx.Context and runs on its transaction when one is
// attached. Repos do not authorize or validate business rules.
package channel
