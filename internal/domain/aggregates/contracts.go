package aggregates

// WriteTxOwnership says who opens the transaction around a write.
type WriteTxOwnership string

const (
	// WriteTxOwnedByAggregate: callers never pass a transaction in.
	WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"
)

// ReadPolicy says which reads an aggregate may perform.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped: only the reads a write needs to check its rules.
	// Listing and paging stay on the table repos.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
)

// Serialization says which writes are ordered with respect to each other.
type Serialization string

const (
	// SerializePerChannel: all writes touching one channel run one at a time.
	SerializePerChannel Serialization = "per_channel"
)

// Contract describes the policy an aggregate implementation honors.
type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	Serialization    Serialization
	Notes            string
}

// Aggregate is implemented by every aggregate.
type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}

func (c Contract) SerializesPerChannel() bool {
	return c.Serialization == SerializePerChannel
}
