package metrics

import (
	"fmt"
	"slices"

	dto "github.com/prometheus/client_model/go"
)

func family(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	i := slices.IndexFunc(mfs, func(mf *dto.MetricFamily) bool { return mf.GetName() == name })
	if i < 0 {
		return nil
	}
	return mfs[i]
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	return slices.ContainsFunc(labels, func(l *dto.LabelPair) bool {
		return l.GetName() == name && l.GetValue() == value
	})
}

// series returns the single series of family name carrying label=value.
func series(mfs []*dto.MetricFamily, name, label, value string) (*dto.Metric, error) {
	mf := family(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("no family %s", name)
	}
	for _, m := range mf.GetMetric() {
		if hasLabel(m.GetLabel(), label, value) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%s has no series with %s=%q", name, label, value)
}

func counterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	m, err := series(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return m.GetCounter().GetValue(), nil
}

func histogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	m, err := series(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return m.GetHistogram().GetSampleSum(), nil
}
