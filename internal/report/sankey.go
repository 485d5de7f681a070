package report

import (
	"fmt"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/areino/taegis-detection-analysis/api/schemas"
	"github.com/areino/taegis-detection-analysis/internal/config"
)

// column identifies which stage of the diagram a node belongs to.
type column int

const (
	columnSensor column = iota
	columnSeverity
	columnStatus
)

func (c column) String() string {
	switch c {
	case columnSensor:
		return "sensor"
	case columnSeverity:
		return "severity"
	case columnStatus:
		return "status"
	}
	return "unknown"
}

// BuildSankey assembles the three-column node-link diagram: sensors on the
// left, severities in the middle, statuses on the right. Links carry the
// summed flow counts for each adjacent pair.
func BuildSankey(snap schemas.Snapshot, cfg config.RenderConfig) *charts.Sankey {
	names := nodeNames(snap)

	nodes := make([]opts.SankeyNode, 0, len(snap.Sensors)+len(snap.Severities)+len(snap.Statuses))
	for _, col := range []struct {
		column column
		tally  map[string]int64
	}{
		{columnSensor, snap.Sensors},
		{columnSeverity, snap.Severities},
		{columnStatus, snap.Statuses},
	} {
		for _, label := range sortedLabels(col.tally) {
			nodes = append(nodes, opts.SankeyNode{Name: names[nodeID{col.column, label}]})
		}
	}

	links := make([]opts.SankeyLink, 0, len(snap.Flows))
	for _, pair := range pairWeights(snap.Flows, func(k schemas.FlowKey) (string, string) { return k.Sensor, k.Severity }) {
		links = append(links, opts.SankeyLink{
			Source: names[nodeID{columnSensor, pair.from}],
			Target: names[nodeID{columnSeverity, pair.to}],
			Value:  float32(pair.weight),
		})
	}
	for _, pair := range pairWeights(snap.Flows, func(k schemas.FlowKey) (string, string) { return k.Severity, k.Status }) {
		links = append(links, opts.SankeyLink{
			Source: names[nodeID{columnSeverity, pair.from}],
			Target: names[nodeID{columnStatus, pair.to}],
			Value:  float32(pair.weight),
		})
	}

	sankey := charts.NewSankey()
	sankey.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: cfg.Title}),
		charts.WithInitializationOpts(opts.Initialization{
			Width:  fmt.Sprintf("%dpx", cfg.Width),
			Height: fmt.Sprintf("%dpx", cfg.Height),
		}),
	)
	sankey.AddSeries("detections", nodes, links,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: "source", Curveness: 0.5}),
	)
	return sankey
}

// nodeID is the identity of a diagram node: the same label string in two
// different columns is two different nodes.
type nodeID struct {
	column column
	label  string
}

// nodeNames maps every node identity to its rendered name. The rendering
// layer identifies nodes by name alone, so a label that appears in more than
// one column is qualified with its column ("OPEN [status]") to keep the
// identities disjoint. Labels unique to one column render unqualified.
func nodeNames(snap schemas.Snapshot) map[nodeID]string {
	seen := make(map[string]int)
	for _, tally := range []map[string]int64{snap.Sensors, snap.Severities, snap.Statuses} {
		for label := range tally {
			seen[label]++
		}
	}

	names := make(map[nodeID]string)
	for col, tally := range map[column]map[string]int64{
		columnSensor:   snap.Sensors,
		columnSeverity: snap.Severities,
		columnStatus:   snap.Statuses,
	} {
		for label := range tally {
			name := label
			if seen[label] > 1 {
				name = fmt.Sprintf("%s [%s]", label, col)
			}
			names[nodeID{col, label}] = name
		}
	}
	return names
}

type pair struct {
	from, to string
	weight   int64
}

// pairWeights collapses the flow triples down to one adjacent dimension pair,
// summing counts. Output order is deterministic.
func pairWeights(flows []schemas.Flow, project func(schemas.FlowKey) (string, string)) []pair {
	weights := make(map[[2]string]int64)
	for _, f := range flows {
		from, to := project(f.Key)
		weights[[2]string{from, to}] += f.Count
	}
	out := make([]pair, 0, len(weights))
	for k, w := range weights {
		out = append(out, pair{from: k[0], to: k[1], weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].from != out[j].from {
			return out[i].from < out[j].from
		}
		return out[i].to < out[j].to
	})
	return out
}

func sortedLabels(tally map[string]int64) []string {
	labels := make([]string, 0, len(tally))
	for label := range tally {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
