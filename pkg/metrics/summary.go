package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// Summary gathers every metric family and renders the non-zero samples as a
// sorted, human-readable block for the --stat flag. Histograms are reduced
// to their count and sum.
func Summary(g prometheus.Gatherer) (string, error) {
	families, err := g.Gather()
	if err != nil {
		return "", err
	}

	var lines []string
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, "octopus_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := renderLabels(m)
			switch mf.GetType() {
			case io_prometheus_client.MetricType_COUNTER:
				if v := m.GetCounter().GetValue(); v != 0 {
					lines = append(lines, fmt.Sprintf("%s%s = %g", name, labels, v))
				}
			case io_prometheus_client.MetricType_GAUGE:
				if v := m.GetGauge().GetValue(); v != 0 {
					lines = append(lines, fmt.Sprintf("%s%s = %g", name, labels, v))
				}
			case io_prometheus_client.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				if h.GetSampleCount() == 0 {
					continue
				}
				lines = append(lines, fmt.Sprintf("%s%s = count %d, sum %g",
					name, labels, h.GetSampleCount(), h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

// renderLabels formats a metric's label pairs as {k="v",...}, or "" when the
// metric has none.
func renderLabels(m *io_prometheus_client.Metric) string {
	pairs := m.GetLabel()
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", p.GetName(), p.GetValue()))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}
