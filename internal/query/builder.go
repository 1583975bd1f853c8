// Package query builds provider search expressions for ingestion jobs.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/arda-labs/reorder-cli/internal/model"
	"github.com/arda-labs/reorder-cli/internal/suppliers"
)

// Mode selects how aggressively the query filters candidates.
type Mode string

const (
	// ModeStrict ANDs a subject keyword clause onto the query: high
	// precision, used first.
	ModeStrict Mode = "strict"

	// ModeFallback drops the subject clause, trading precision for recall
	// when the strict query returned too few results.
	ModeFallback Mode = "fallback"
)

// maxDomains caps the number of domains in a single search expression.
const maxDomains = 20

// Lookback windows: priority categories search further back.
const (
	priorityLookback = 365 * 24 * time.Hour
	defaultLookback  = 182 * 24 * time.Hour
)

// Subject keyword sets. Priority categories carry the broader commerce
// vocabulary; generic categories keep a narrow set to limit noise.
var (
	priorityKeywords = []string{
		"order", "order confirmation", "purchase order", "invoice",
		"shipped", "shipment", "receipt", "acknowledgment", "acknowledgement",
	}
	genericKeywords = []string{
		"order", "invoice", "shipped", "receipt",
	}
)

// Build produces a provider search expression from supplier domains, a job
// category, and a mode. Domains are sanitized (trimmed, lower-cased,
// deduped, malformed entries rejected, capped at maxDomains) and expanded
// through the catalog's alias map so every historical spelling is covered.
func Build(catalog *suppliers.Catalog, domains []string, category model.JobCategory, mode Mode, now time.Time) (string, error) {
	clean := SanitizeDomains(domains)
	if len(clean) == 0 {
		return "", eris.New("query: no valid supplier domains")
	}

	var expanded []string
	seen := make(map[string]struct{})
	for _, d := range clean {
		for _, spelling := range catalog.Expand(d) {
			if _, ok := seen[spelling]; ok {
				continue
			}
			seen[spelling] = struct{}{}
			expanded = append(expanded, spelling)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from:(%s)", strings.Join(expanded, " OR "))

	lookback := defaultLookback
	if category.Priority() {
		lookback = priorityLookback
	}
	fmt.Fprintf(&b, " after:%s", now.Add(-lookback).Format("2006/01/02"))

	if mode == ModeStrict {
		keywords := genericKeywords
		if category.Priority() {
			keywords = priorityKeywords
		}
		quoted := make([]string, len(keywords))
		for i, k := range keywords {
			if strings.Contains(k, " ") {
				quoted[i] = fmt.Sprintf("%q", k)
			} else {
				quoted[i] = k
			}
		}
		fmt.Fprintf(&b, " subject:(%s)", strings.Join(quoted, " OR "))
	}

	return b.String(), nil
}

// SanitizeDomains trims, lower-cases, dedupes, drops malformed entries, and
// caps the list at maxDomains.
func SanitizeDomains(domains []string) []string {
	seen := make(map[string]struct{}, len(domains))
	var out []string
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if !validDomain(d) {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
		if len(out) == maxDomains {
			break
		}
	}
	return out
}

// validDomain accepts bare domains like "uline.com". Anything with spaces,
// an @, a scheme, or no dot is rejected.
func validDomain(d string) bool {
	if d == "" || !strings.Contains(d, ".") {
		return false
	}
	if strings.ContainsAny(d, " @/:") {
		return false
	}
	if strings.HasPrefix(d, ".") || strings.HasSuffix(d, ".") {
		return false
	}
	return true
}
