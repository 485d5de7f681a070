package analyze

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areino/taegis-detection-analysis/api/schemas"
)

func rec(sensors, severity, status string) schemas.Record {
	return schemas.Record{SensorTypes: sensors, Severity: severity, Status: status}
}

// TestAggregatorExcludeInfo covers the worked example from the CLI contract:
// three rows, one INFO, aggregated with INFO exclusion on.
func TestAggregatorExcludeInfo(t *testing.T) {
	batch := []schemas.Record{
		rec(`["Mimecast"]`, "HIGH", "OPEN"),
		rec(`["Mimecast"]`, "INFO", "OPEN"),
		rec(`["ENDPOINT_TAEGIS"]`, "HIGH", "RESOLVED"),
	}

	agg := New(true)
	agg.Accumulate(batch)
	snap := agg.Snapshot()

	assert.Equal(t, int64(2), snap.Included)
	assert.Equal(t, int64(1), snap.Excluded)
	assert.Equal(t, int64(0), snap.Skipped)
	assert.Equal(t, map[string]int64{"Mimecast": 1, "ENDPOINT_TAEGIS": 1}, snap.Sensors)
	assert.Equal(t, map[string]int64{"HIGH": 2}, snap.Severities)
	assert.Equal(t, map[string]int64{"OPEN": 1, "RESOLVED": 1}, snap.Statuses)

	require.Len(t, snap.Flows, 2)
	counts := make(map[schemas.FlowKey]int64)
	for _, f := range snap.Flows {
		counts[f.Key] = f.Count
	}
	assert.Equal(t, int64(1), counts[schemas.FlowKey{Sensor: "Mimecast", Severity: "HIGH", Status: "OPEN"}])
	assert.Equal(t, int64(1), counts[schemas.FlowKey{Sensor: "ENDPOINT_TAEGIS", Severity: "HIGH", Status: "RESOLVED"}])
}

func TestAggregatorIncludesInfoByDefault(t *testing.T) {
	agg := New(false)
	agg.Accumulate([]schemas.Record{rec(`["Mimecast"]`, "INFO", "OPEN")})
	snap := agg.Snapshot()

	assert.Equal(t, int64(1), snap.Included)
	assert.Equal(t, int64(0), snap.Excluded)
	assert.Equal(t, map[string]int64{"INFO": 1}, snap.Severities)
}

// TestAggregatorInfoMatchIsCaseSensitive pins the exclusion to the literal
// "INFO": differently-cased values are distinct labels.
func TestAggregatorInfoMatchIsCaseSensitive(t *testing.T) {
	agg := New(true)
	agg.Accumulate([]schemas.Record{
		rec(`["A"]`, "INFO", "OPEN"),
		rec(`["A"]`, "info", "OPEN"),
		rec(`["A"]`, "Info", "OPEN"),
	})
	snap := agg.Snapshot()

	assert.Equal(t, int64(1), snap.Excluded)
	assert.Equal(t, int64(2), snap.Included)
	assert.Equal(t, map[string]int64{"info": 1, "Info": 1}, snap.Severities)
}

func TestAggregatorSkipsMalformedRows(t *testing.T) {
	agg := New(false)
	agg.Accumulate([]schemas.Record{
		rec(`["A"]`, "HIGH", "OPEN"),
		rec("", "HIGH", "OPEN"),          // empty sensor list
		rec(`[]`, "HIGH", "OPEN"),        // decodes to empty list
		rec(`["A"]`, "", "OPEN"),         // missing severity
		rec(`["A"]`, "HIGH", "   "),      // blank status
		rec(`["",""]`, "HIGH", "OPEN"),   // list of empties
	})
	snap := agg.Snapshot()

	assert.Equal(t, int64(1), snap.Included)
	assert.Equal(t, int64(5), snap.Skipped)
	assert.Equal(t, map[string]int64{"A": 1}, snap.Sensors)
}

// TestAggregatorConservation checks the run invariant: every row read lands in
// exactly one of included, excluded or skipped.
func TestAggregatorConservation(t *testing.T) {
	batch := []schemas.Record{
		rec(`["A"]`, "HIGH", "OPEN"),
		rec(`["B"]`, "INFO", "OPEN"),
		rec("", "HIGH", "OPEN"),
		rec(`["C"]`, "LOW", "RESOLVED"),
		rec(`["D"]`, "INFO", "SUPPRESSED"),
		rec(`["E"]`, "HIGH", ""),
	}

	agg := New(true)
	agg.Accumulate(batch)
	snap := agg.Snapshot()

	assert.Equal(t, int64(len(batch)), snap.TotalRead())

	var sensorSum int64
	for _, v := range snap.Sensors {
		sensorSum += v
	}
	assert.Equal(t, snap.Included, sensorSum, "per-sensor tallies must sum to the included count")
}

// TestAggregatorBatchSplitInvariance verifies that how rows are split into
// batches never changes the final tallies.
func TestAggregatorBatchSplitInvariance(t *testing.T) {
	rows := []schemas.Record{
		rec(`["A"]`, "HIGH", "OPEN"),
		rec(`["B"]`, "LOW", "OPEN"),
		rec(`["A"]`, "HIGH", "RESOLVED"),
		rec(`["C"]`, "MEDIUM", "OPEN"),
		rec(`["B"]`, "LOW", "SUPPRESSED"),
		rec(`["A"]`, "HIGH", "OPEN"),
		rec(`["C"]`, "INFO", "OPEN"),
	}

	aggregate := func(batchSize int) schemas.Snapshot {
		agg := New(true)
		for start := 0; start < len(rows); start += batchSize {
			end := start + batchSize
			if end > len(rows) {
				end = len(rows)
			}
			agg.Accumulate(rows[start:end])
		}
		return agg.Snapshot()
	}

	baseline := aggregate(1)
	for _, size := range []int{2, 3, len(rows), len(rows) + 10} {
		snap := aggregate(size)
		assert.Equal(t, baseline.Included, snap.Included, "batch size %d", size)
		assert.Equal(t, baseline.Excluded, snap.Excluded, "batch size %d", size)
		assert.Equal(t, baseline.Sensors, snap.Sensors, "batch size %d", size)
		assert.Equal(t, baseline.Severities, snap.Severities, "batch size %d", size)
		assert.Equal(t, baseline.Statuses, snap.Statuses, "batch size %d", size)
	}
}

// TestAggregatorRowOrderIndependence shuffles the input and checks that every
// tally value is unchanged.
func TestAggregatorRowOrderIndependence(t *testing.T) {
	rows := []schemas.Record{
		rec(`["A"]`, "HIGH", "OPEN"),
		rec(`["B"]`, "LOW", "OPEN"),
		rec(`["A"]`, "HIGH", "RESOLVED"),
		rec(`["C"]`, "MEDIUM", "OPEN"),
		rec("", "HIGH", "OPEN"),
		rec(`["B"]`, "INFO", "OPEN"),
	}

	agg := New(true)
	agg.Accumulate(rows)
	baseline := agg.Snapshot()

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		shuffled := make([]schemas.Record, len(rows))
		copy(shuffled, rows)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		agg := New(true)
		agg.Accumulate(shuffled)
		snap := agg.Snapshot()

		assert.Equal(t, baseline.Included, snap.Included)
		assert.Equal(t, baseline.Excluded, snap.Excluded)
		assert.Equal(t, baseline.Skipped, snap.Skipped)
		assert.Equal(t, baseline.Sensors, snap.Sensors)
		assert.Equal(t, baseline.Severities, snap.Severities)
		assert.Equal(t, baseline.Statuses, snap.Statuses)

		counts := func(flows []schemas.Flow) map[schemas.FlowKey]int64 {
			m := make(map[schemas.FlowKey]int64)
			for _, f := range flows {
				m[f.Key] = f.Count
			}
			return m
		}
		assert.Equal(t, counts(baseline.Flows), counts(snap.Flows))
	}
}

// TestSnapshotIsDetached ensures mutating the aggregator after Snapshot does
// not leak into the returned copy.
func TestSnapshotIsDetached(t *testing.T) {
	agg := New(false)
	agg.Accumulate([]schemas.Record{rec(`["A"]`, "HIGH", "OPEN")})
	snap := agg.Snapshot()

	agg.Accumulate([]schemas.Record{rec(`["A"]`, "HIGH", "OPEN")})

	assert.Equal(t, int64(1), snap.Included)
	assert.Equal(t, int64(1), snap.Sensors["A"])
	require.Len(t, snap.Flows, 1)
	assert.Equal(t, int64(1), snap.Flows[0].Count)
}
