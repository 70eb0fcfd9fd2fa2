package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

// OrderDocuments returns the catalogue's document types in generation order.
// The order is a topological sort of the DependsOn graph that keeps list
// order wherever dependencies allow, so a catalogue already listed in
// dependency order is returned unchanged.
func OrderDocuments(catalog domain.Catalog) ([]string, error) {
	// Waves validates the catalogue and rejects cycles.
	if _, err := Waves(catalog); err != nil {
		return nil, err
	}
	return stableOrder(catalog), nil
}

// Waves groups the catalogue into dependency levels. Every document in a
// wave depends only on documents in earlier waves, so a wave may run
// concurrently once its predecessors have committed. Documents within a
// wave keep list order.
func Waves(catalog domain.Catalog) ([][]string, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	remaining := make(map[string]int, len(catalog.Documents))
	dependents := make(map[string][]string)
	for _, d := range catalog.Documents {
		remaining[d.Type] = len(uniqueStrings(d.DependsOn))
		for _, dep := range uniqueStrings(d.DependsOn) {
			dependents[dep] = append(dependents[dep], d.Type)
		}
	}

	var waves [][]string
	done := 0
	for done < len(catalog.Documents) {
		var wave []string
		for _, d := range catalog.Documents {
			if remaining[d.Type] == 0 {
				wave = append(wave, d.Type)
			}
		}
		if len(wave) == 0 {
			return nil, cycleError(remaining)
		}
		for _, t := range wave {
			remaining[t] = -1
			for _, next := range dependents[t] {
				remaining[next]--
			}
		}
		done += len(wave)
		waves = append(waves, wave)
	}
	return waves, nil
}

// stableOrder is Kahn's algorithm picking the earliest listed ready
// document each step.
func stableOrder(catalog domain.Catalog) []string {
	indegree := make(map[string]int, len(catalog.Documents))
	dependents := make(map[string][]string)
	for _, d := range catalog.Documents {
		deps := uniqueStrings(d.DependsOn)
		indegree[d.Type] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], d.Type)
		}
	}

	order := make([]string, 0, len(catalog.Documents))
	emitted := make(map[string]bool, len(catalog.Documents))
	for len(order) < len(catalog.Documents) {
		for _, d := range catalog.Documents {
			if emitted[d.Type] || indegree[d.Type] > 0 {
				continue
			}
			emitted[d.Type] = true
			order = append(order, d.Type)
			for _, next := range dependents[d.Type] {
				indegree[next]--
			}
			break
		}
	}
	return order
}

// Downstream returns the documents that transitively depend on documentType.
func Downstream(catalog domain.Catalog, documentType string) []string {
	var out []string
	seen := map[string]bool{documentType: true}
	frontier := []string{documentType}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, d := range catalog.Documents {
			if seen[d.Type] {
				continue
			}
			for _, dep := range d.DependsOn {
				if dep == current {
					seen[d.Type] = true
					out = append(out, d.Type)
					frontier = append(frontier, d.Type)
					break
				}
			}
		}
	}
	return out
}

func cycleError(remaining map[string]int) error {
	var stuck []string
	for t, n := range remaining {
		if n > 0 {
			stuck = append(stuck, t)
		}
	}
	sort.Strings(stuck)
	return fmt.Errorf("%w: %s", domain.ErrCyclicDependency, strings.Join(stuck, ", "))
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
