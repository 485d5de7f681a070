// Package analyze turns raw detection records into running categorical
// tallies. The aggregator is the only mutable state in a run; it is owned by
// the root command and driven by a single goroutine, so no locking is needed.
package analyze

import (
	"github.com/areino/taegis-detection-analysis/api/schemas"
)

// Aggregator accumulates per-sensor, per-severity, per-status and per-flow
// counts across batches. Counts only ever increase; the result is independent
// of row and batch order.
type Aggregator struct {
	excludeInfo bool

	included int64
	excluded int64
	skipped  int64

	sensors    map[string]int64
	severities map[string]int64
	statuses   map[string]int64
	flows      map[schemas.FlowKey]*flowEntry
	nextSeq    int64
}

type flowEntry struct {
	count int64
	seq   int64
}

// infoSeverity is the literal severity excluded by --exclude-info. The match
// is case-sensitive: the upstream export emits severities upper-cased, and a
// differently-cased value is a distinct label, not INFO.
const infoSeverity = "INFO"

// New creates an empty aggregator. When excludeInfo is set, rows with
// severity INFO are diverted to the excluded counter instead of the tallies.
func New(excludeInfo bool) *Aggregator {
	return &Aggregator{
		excludeInfo: excludeInfo,
		sensors:     make(map[string]int64),
		severities:  make(map[string]int64),
		statuses:    make(map[string]int64),
		flows:       make(map[schemas.FlowKey]*flowEntry),
	}
}

// Accumulate folds one batch into the running tallies. A row missing any of
// the three fields counts as skipped and touches nothing else.
func (a *Aggregator) Accumulate(batch []schemas.Record) {
	for _, rec := range batch {
		sensor, okSensor := ExtractSensor(rec.SensorTypes)
		severity, okSeverity := CleanField(rec.Severity)
		status, okStatus := CleanField(rec.Status)

		if !okSensor || !okSeverity || !okStatus {
			a.skipped++
			continue
		}

		if a.excludeInfo && severity == infoSeverity {
			a.excluded++
			continue
		}

		a.included++
		a.sensors[sensor]++
		a.severities[severity]++
		a.statuses[status]++

		key := schemas.FlowKey{Sensor: sensor, Severity: severity, Status: status}
		entry, ok := a.flows[key]
		if !ok {
			entry = &flowEntry{seq: a.nextSeq}
			a.nextSeq++
			a.flows[key] = entry
		}
		entry.count++
	}
}

// Snapshot returns a read-only copy of the final state. The aggregator may be
// discarded afterwards; the snapshot shares no memory with it.
func (a *Aggregator) Snapshot() schemas.Snapshot {
	snap := schemas.Snapshot{
		Included:   a.included,
		Excluded:   a.excluded,
		Skipped:    a.skipped,
		Sensors:    copyTally(a.sensors),
		Severities: copyTally(a.severities),
		Statuses:   copyTally(a.statuses),
		Flows:      make([]schemas.Flow, 0, len(a.flows)),
	}
	for key, entry := range a.flows {
		snap.Flows = append(snap.Flows, schemas.Flow{Key: key, Count: entry.count, Seq: entry.seq})
	}
	return snap
}

func copyTally(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
