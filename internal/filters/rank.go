// Package filters turns the most informative destination features of a
// selection into user-facing filter questions.
package filters

import (
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/suPer8Hu/travel-assistant/internal/models"
)

type feature struct {
	name  string
	kind  string
	value func(models.Destination) string
}

const (
	TypeBinary      = "binary"
	TypeCategorical = "categorical"
)

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

var features = []feature{
	{"day_trip", TypeBinary, func(d models.Destination) string { return flag(d.DayTrip) }},
	{"long_trip", TypeBinary, func(d models.Destination) string { return flag(d.LongTrip) }},
	{"short_trip", TypeBinary, func(d models.Destination) string { return flag(d.ShortTrip) }},
	{"one_week", TypeBinary, func(d models.Destination) string { return flag(d.OneWeek) }},
	{"weekend", TypeBinary, func(d models.Destination) string { return flag(d.Weekend) }},
	{"culture", TypeCategorical, func(d models.Destination) string { return strconv.Itoa(d.Culture) }},
	{"adventure", TypeCategorical, func(d models.Destination) string { return strconv.Itoa(d.Adventure) }},
	{"nature", TypeCategorical, func(d models.Destination) string { return strconv.Itoa(d.Nature) }},
	{"beaches", TypeCategorical, func(d models.Destination) string { return strconv.Itoa(d.Beaches) }},
	{"nightlife", TypeCategorical, func(d models.Destination) string { return strconv.Itoa(d.Nightlife) }},
	{"cuisine", TypeCategorical, func(d models.Destination) string { return strconv.Itoa(d.Cuisine) }},
	{"wellness", TypeCategorical, func(d models.Destination) string { return strconv.Itoa(d.Wellness) }},
	{"urban", TypeCategorical, func(d models.Destination) string { return strconv.Itoa(d.Urban) }},
	{"seclusion", TypeCategorical, func(d models.Destination) string { return strconv.Itoa(d.Seclusion) }},
	{"region", TypeCategorical, func(d models.Destination) string { return d.Region }},
	{"budget_level", TypeCategorical, func(d models.Destination) string { return d.BudgetLevel }},
}

// RankedFeature is one candidate filter. Values are those seen in the selection.
type RankedFeature struct {
	Name   string   `json:"feature"`
	Type   string   `json:"type"`
	Score  float64  `json:"info_gain"`
	Values []string `json:"values"`
}

// RankFeatures scores every feature by its mutual information (in nats) with
// the "is selected" label over all destinations and returns the topN best.
// Ties keep declaration order.
func RankFeatures(all []models.Destination, selectedIDs []string, topN int) []RankedFeature {
	selected := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = true
	}

	labels := make([]string, len(all))
	nSelected := 0
	for i, d := range all {
		labels[i] = flag(selected[d.ID])
		if selected[d.ID] {
			nSelected++
		}
	}
	if nSelected == 0 {
		return nil
	}

	out := make([]RankedFeature, 0, len(features))
	for _, f := range features {
		xs := make([]string, len(all))
		seen := map[string]bool{}
		var values []string
		for i, d := range all {
			xs[i] = f.value(d)
			if selected[d.ID] && !seen[xs[i]] {
				seen[xs[i]] = true
				values = append(values, xs[i])
			}
		}
		sort.Strings(values)
		out = append(out, RankedFeature{
			Name:   f.name,
			Type:   f.kind,
			Score:  mutualInformation(xs, labels),
			Values: values,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// mutualInformation computes I(X;Y) = H(X) + H(Y) - H(X,Y) from paired samples.
func mutualInformation(xs, ys []string) float64 {
	joint := make([]string, len(xs))
	for i := range xs {
		joint[i] = xs[i] + "\x00" + ys[i]
	}
	mi := entropy(xs) + entropy(ys) - entropy(joint)
	if mi < 1e-12 {
		// float noise on independent variables
		return 0
	}
	return mi
}

func entropy(samples []string) float64 {
	if len(samples) == 0 {
		return 0
	}
	counts := map[string]int{}
	for _, s := range samples {
		counts[s]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := make([]float64, 0, len(keys))
	n := float64(len(samples))
	for _, k := range keys {
		p = append(p, float64(counts[k])/n)
	}
	return stat.Entropy(p)
}
