package schemas

// -- Core Detection Models --
// These types are the shapes shared across the ingest, analyze and report
// packages. They carry no behavior beyond simple accessors.

// Record is one detection row with the three analyzed columns resolved to
// their raw string values. Values are exactly as they appeared in the source;
// cleaning and list decoding happen in the analyze package.
type Record struct {
	SensorTypes string
	Severity    string
	Status      string
}

// FlowKey identifies one sensor → severity → status path through the diagram.
type FlowKey struct {
	Sensor   string
	Severity string
	Status   string
}

// Flow is an aggregated flow with its count and the sequence number assigned
// when the key was first encountered. Seq is the tie-break for equal counts,
// so listings are stable across runs over the same input.
type Flow struct {
	Key   FlowKey
	Count int64
	Seq   int64
}

// Snapshot is the read-only result of a completed aggregation pass.
type Snapshot struct {
	// Included + Excluded + Skipped equals the number of rows read.
	Included int64
	Excluded int64
	Skipped  int64

	Sensors    map[string]int64
	Severities map[string]int64
	Statuses   map[string]int64
	Flows      []Flow
}

// TotalRead returns the number of source rows the snapshot accounts for.
func (s Snapshot) TotalRead() int64 {
	return s.Included + s.Excluded + s.Skipped
}
