package suppliers

import (
	"sort"

	"github.com/arda-labs/reorder-cli/internal/model"
)

// maxSampleSubjects caps the merged sample subject list per supplier.
const maxSampleSubjects = 5

// Merge deduplicates and ranks discovered suppliers against the catalog's
// priority list. Domains are canonicalized before merging; the primary
// marketplace is excluded (it has its own job category and is never offered
// as a selectable supplier). Priority suppliers sort first in catalog order,
// then the rest by descending score.
func Merge(catalog *Catalog, discovered []model.DiscoveredSupplier) []model.DiscoveredSupplier {
	byDomain := make(map[string]*model.DiscoveredSupplier)
	var order []string

	add := func(sup model.DiscoveredSupplier) {
		domain := catalog.Canonicalize(sup.Domain)
		if domain == "" || catalog.IsMarketplace(domain) {
			return
		}
		sup.Domain = domain

		existing, ok := byDomain[domain]
		if !ok {
			merged := sup
			merged.SampleSubjects = truncateSubjects(dedupeSubjects(sup.SampleSubjects))
			byDomain[domain] = &merged
			order = append(order, domain)
			return
		}
		mergeInto(existing, sup)
	}

	for _, p := range catalog.Priority {
		add(p)
	}
	priorityCount := len(order)
	for _, d := range discovered {
		add(d)
	}

	out := make([]model.DiscoveredSupplier, 0, len(order))
	for _, domain := range order {
		out = append(out, *byDomain[domain])
	}

	// Priority suppliers keep catalog order; discovered suppliers sort by
	// descending score. Both sorts are stable so equal scores keep their
	// discovery order.
	rest := out[priorityCount:]
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Score > rest[j].Score
	})
	return out
}

// mergeInto folds a duplicate record into the existing one: email counts
// sum, score takes the max, a known category beats "unknown", sample
// subjects union up to the cap, and the recommended flag ORs.
func mergeInto(dst *model.DiscoveredSupplier, src model.DiscoveredSupplier) {
	dst.EmailCount += src.EmailCount
	if src.Score > dst.Score {
		dst.Score = src.Score
	}
	if dst.Category == "" || dst.Category == model.CategoryUnknown {
		if src.Category != "" && src.Category != model.CategoryUnknown {
			dst.Category = src.Category
		}
	}
	if dst.DisplayName == "" {
		dst.DisplayName = src.DisplayName
	}
	dst.SampleSubjects = truncateSubjects(dedupeSubjects(append(dst.SampleSubjects, src.SampleSubjects...)))
	dst.IsRecommended = dst.IsRecommended || src.IsRecommended
}

func dedupeSubjects(subjects []string) []string {
	seen := make(map[string]struct{}, len(subjects))
	out := subjects[:0:0]
	for _, s := range subjects {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func truncateSubjects(subjects []string) []string {
	if len(subjects) > maxSampleSubjects {
		return subjects[:maxSampleSubjects]
	}
	return subjects
}
