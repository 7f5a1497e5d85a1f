// Package aggregates defines the channel and message write boundaries.
//
// Contracts here carry no persistence or transport detail. Each write method is
// one unit of work: validation, authorization, the primary write and every side
// effect commit together, and notices describing the change are handed to a
// Publisher only after commit.
package aggregates
