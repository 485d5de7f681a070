// Package report renders the final outputs of a run: the console summary and
// the three-stage Sankey diagram artifact.
package report

import (
	"fmt"
	"io"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/areino/taegis-detection-analysis/api/schemas"
)

const summaryRule = "================================================================================"

// topFlowCount caps the flow listing in the console summary.
const topFlowCount = 10

// WriteSummary prints the human-readable analysis summary. Distributions are
// sorted by descending count (ties by label); the flow listing is sorted by
// descending count with ties in first-encounter order.
func WriteSummary(w io.Writer, snap schemas.Snapshot) error {
	p := message.NewPrinter(language.English)

	if _, err := fmt.Fprintln(w, summaryRule); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	fmt.Fprintln(w, "ANALYSIS SUMMARY")
	fmt.Fprintln(w, summaryRule)
	p.Fprintf(w, "Total alerts processed: %d\n", snap.Included)
	if snap.Excluded > 0 {
		p.Fprintf(w, "Excluded (INFO severity): %d\n", snap.Excluded)
	}
	if snap.Skipped > 0 {
		p.Fprintf(w, "Skipped (malformed rows): %d\n", snap.Skipped)
	}
	p.Fprintf(w, "Unique sensor types: %d\n", len(snap.Sensors))
	p.Fprintf(w, "Unique severity levels: %d\n", len(snap.Severities))
	p.Fprintf(w, "Unique status values: %d\n", len(snap.Statuses))

	writeDistribution(w, p, "Sensor Types", snap.Sensors)
	writeDistribution(w, p, "Severity Distribution", snap.Severities)
	writeDistribution(w, p, "Status Distribution", snap.Statuses)

	fmt.Fprintf(w, "\nTop %d Sensor Type → Severity → Status Flows:\n", topFlowCount)
	for _, flow := range TopFlows(snap.Flows, topFlowCount) {
		p.Fprintf(w, "  %s → %s → %s: %d alerts\n",
			flow.Key.Sensor, flow.Key.Severity, flow.Key.Status, flow.Count)
	}

	fmt.Fprintln(w, summaryRule)
	return nil
}

func writeDistribution(w io.Writer, p *message.Printer, heading string, tally map[string]int64) {
	fmt.Fprintf(w, "\n%s:\n", heading)
	for _, label := range sortedByCount(tally) {
		p.Fprintf(w, "  - %s: %d alerts\n", label, tally[label])
	}
}

// sortedByCount orders labels by descending count, breaking ties by label so
// the listing is deterministic.
func sortedByCount(tally map[string]int64) []string {
	labels := make([]string, 0, len(tally))
	for label := range tally {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if tally[labels[i]] != tally[labels[j]] {
			return tally[labels[i]] > tally[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

// TopFlows returns the n highest-count flows. Equal counts keep their
// first-encounter order from the source, so the listing is stable for a given
// input file.
func TopFlows(flows []schemas.Flow, n int) []schemas.Flow {
	out := make([]schemas.Flow, len(flows))
	copy(out, flows)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Seq < out[j].Seq
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
