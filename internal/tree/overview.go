package tree

import "projectmonitor/internal/models"

// BuildOverview reassembles flat results into an overview shaped like
// projects. A project is up when it has no results or any result is up. It
// warns when any of its own results is down or any direct dependency is down
// or warning.
func BuildOverview(statuses []models.HealthCheckStatus, projects []models.Project) models.StatusOverview {
	byProject := make(map[string][]models.HealthCheckStatus)
	for _, status := range statuses {
		byProject[status.ProjectName] = append(byProject[status.ProjectName], status)
	}
	return buildOverview(byProject, projects)
}

func buildOverview(byProject map[string][]models.HealthCheckStatus, projects []models.Project) models.StatusOverview {
	overview := make(models.StatusOverview, len(projects))
	for _, p := range projects {
		subset := byProject[p.Name]
		if subset == nil {
			subset = []models.HealthCheckStatus{}
		}

		node := models.ProjectStatus{
			Statuses: subset,
			Up:       len(subset) == 0,
		}
		for _, s := range subset {
			if s.Up {
				node.Up = true
			} else {
				node.Warning = true
			}
		}

		if len(p.Dependencies) > 0 {
			node.Dependencies = buildOverview(byProject, p.Dependencies)
			for _, dep := range node.Dependencies {
				if !dep.Up || dep.Warning {
					node.Warning = true
					break
				}
			}
		}
		overview[p.Name] = node
	}
	return overview
}
