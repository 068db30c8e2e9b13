package cli

import (
	"io"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mrz1836/seedscout/internal/metrics"
	"github.com/mrz1836/seedscout/internal/output"
)

// metricsNamespace prefixes exported counter names.
const metricsNamespace = "seedscout"

// counterList is a gathered set of counters in registry order.
type counterList []counter

type counter struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// RenderText implements output.TextRenderer.
func (l counterList) RenderText(w io.Writer) error {
	t := output.NewTable("COUNTER", "VALUE")
	t.SetAlign(1, output.AlignRight)
	for _, c := range l {
		t.AddRow(c.Name, strconv.FormatFloat(c.Value, 'f', -1, 64))
	}
	return t.Render(w)
}

// gatherCounters exports m through a private Prometheus registry.
func gatherCounters(m *metrics.Metrics) (counterList, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(metricsNamespace, m)); err != nil {
		return nil, err
	}
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}

	list := make(counterList, 0, len(families))
	for _, mf := range families {
		for _, mt := range mf.GetMetric() {
			list = append(list, counter{Name: mf.GetName(), Value: mt.GetCounter().GetValue()})
		}
	}
	return list, nil
}
