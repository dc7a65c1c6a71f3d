package aggregates

// ConsistencyModel defines what a cross-document write guarantees.
type ConsistencyModel string

const (
	// ConsistencyAtomic means the write commits fully or not at all.
	ConsistencyAtomic ConsistencyModel = "atomic"
	// ConsistencyBestEffort means the write spans independent stores with no
	// shared transaction and no compensation. Half-applied writes are reported.
	ConsistencyBestEffort ConsistencyModel = "best_effort"
)

// ReadPolicy defines how aggregate contracts should expose reads.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped allows only reads needed for invariant decisions in write flows.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
	// ReadPolicyStoreQueries keeps collection listing on the store clients and services.
	ReadPolicyStoreQueries ReadPolicy = "store_queries"
)

// Contract describes aggregate-level policy expectations.
type Contract struct {
	Name        string
	Consistency ConsistencyModel
	ReadPolicy  ReadPolicy
	Notes       string
}

// Aggregate is the common marker for all aggregate contracts.
// Implementations should return a stable contract description.
type Aggregate interface {
	Contract() Contract
}

// RequiresPartialFailureHandling returns true when callers must be prepared
// for CodePartialLink results.
func (c Contract) RequiresPartialFailureHandling() bool {
	return c.Consistency == ConsistencyBestEffort
}
