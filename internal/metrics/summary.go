package metrics

import (
	"math"
	"sort"

	"projectmonitor/internal/models"
)

// ProjectSummary condenses one overview node.
type ProjectSummary struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	Up            bool    `json:"up"`
	Warning       bool    `json:"warning"`
	UptimePercent float64 `json:"uptime_percent"`
	TotalChecks   int     `json:"total_checks"`
	Passing       int     `json:"passing"`
	Failing       int     `json:"failing"`
	LastChecked   string  `json:"last_checked,omitempty"`
}

// Summarize flattens an overview into per-project check counts. Path joins
// the names from the root with "/". The result is sorted by path.
func Summarize(overview models.StatusOverview) []ProjectSummary {
	var out []ProjectSummary
	summarize(overview, "", &out)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})
	return out
}

func summarize(overview models.StatusOverview, prefix string, out *[]ProjectSummary) {
	for name, node := range overview {
		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}

		summary := ProjectSummary{
			Name:        name,
			Path:        path,
			Up:          node.Up,
			Warning:     node.Warning,
			TotalChecks: len(node.Statuses),
		}
		for _, status := range node.Statuses {
			if status.Up {
				summary.Passing++
			} else {
				summary.Failing++
			}
			if status.Timestamp > summary.LastChecked {
				summary.LastChecked = status.Timestamp
			}
		}
		if summary.TotalChecks > 0 {
			summary.UptimePercent = round2(float64(summary.Passing) / float64(summary.TotalChecks) * 100)
		} else {
			summary.UptimePercent = 100
		}
		*out = append(*out, summary)

		summarize(node.Dependencies, path, out)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
