// Package tree resolves project hierarchies: it flattens them into health
// check executions and folds results back into a status overview.
package tree

import (
	"fmt"
	"sort"
	"strings"

	"projectmonitor/internal/models"
)

// Execution is one health check to run for a project in a round.
type Execution struct {
	ProjectName string
	HealthCheck models.HealthCheck
}

// Flatten walks projects depth-first, pre-order, and returns one execution
// per health check. Project names are identities: only the first node seen
// with a given name contributes, later namesakes and their subtrees are
// skipped.
func Flatten(projects []models.Project) []Execution {
	var out []Execution
	seen := make(map[string]struct{})
	flatten(projects, seen, &out)
	return out
}

func flatten(projects []models.Project, seen map[string]struct{}, out *[]Execution) {
	for i := range projects {
		p := &projects[i]
		if _, dup := seen[p.Name]; dup {
			continue
		}
		seen[p.Name] = struct{}{}
		for _, hc := range p.HealthChecks {
			*out = append(*out, Execution{ProjectName: p.Name, HealthCheck: hc})
		}
		flatten(p.Dependencies, seen, out)
	}
}

// Index is the arena of all projects of a session, keyed by name.
type Index struct {
	nodes map[string]*models.Project
	order []string
}

// DuplicateNameError lists project names used by more than one node.
type DuplicateNameError struct {
	Names []string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("project names must be unique, duplicated: %s", strings.Join(e.Names, ", "))
}

// NewIndex builds the arena for projects. Duplicate names are rejected.
func NewIndex(projects []models.Project) (*Index, error) {
	idx := &Index{nodes: make(map[string]*models.Project)}
	dups := make(map[string]struct{})
	idx.add(projects, dups)
	if len(dups) > 0 {
		names := make([]string, 0, len(dups))
		for name := range dups {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, &DuplicateNameError{Names: names}
	}
	return idx, nil
}

func (idx *Index) add(projects []models.Project, dups map[string]struct{}) {
	for i := range projects {
		p := &projects[i]
		if _, exists := idx.nodes[p.Name]; exists {
			dups[p.Name] = struct{}{}
		} else {
			idx.nodes[p.Name] = p
			idx.order = append(idx.order, p.Name)
		}
		idx.add(p.Dependencies, dups)
	}
}

// Names returns project names in depth-first pre-order.
func (idx *Index) Names() []string {
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// Len returns the number of projects.
func (idx *Index) Len() int {
	return len(idx.order)
}

// CheckCount returns the number of health checks across all projects.
func (idx *Index) CheckCount() int {
	total := 0
	for _, p := range idx.nodes {
		total += len(p.HealthChecks)
	}
	return total
}
