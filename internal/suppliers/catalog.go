// Package suppliers canonicalizes supplier domains and merges discovered
// suppliers with the known priority list.
package suppliers

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/arda-labs/reorder-cli/internal/model"
)

// Catalog holds the fixed priority supplier list, the domain alias map, and
// the primary marketplace domain.
type Catalog struct {
	Marketplace string                     `yaml:"marketplace"`
	Priority    []model.DiscoveredSupplier `yaml:"priority"`
	// Aliases maps legacy or alternate domain spellings onto the canonical
	// domain, e.g. "mcmaster-carr.com" -> "mcmaster.com".
	Aliases map[string]string `yaml:"aliases"`
}

// DefaultCatalog returns the built-in priority suppliers and alias map.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Marketplace: "amazon.com",
		Priority: []model.DiscoveredSupplier{
			{Domain: "uline.com", DisplayName: "Uline", Category: "packaging", Score: 100, IsRecommended: true},
			{Domain: "grainger.com", DisplayName: "Grainger", Category: "industrial", Score: 95, IsRecommended: true},
			{Domain: "mcmaster.com", DisplayName: "McMaster-Carr", Category: "industrial", Score: 90, IsRecommended: true},
			{Domain: "fastenal.com", DisplayName: "Fastenal", Category: "fasteners", Score: 85, IsRecommended: true},
		},
		Aliases: map[string]string{
			"uline-shipping.com": "uline.com",
			"grainger-email.com": "grainger.com",
			"mcmaster-carr.com":  "mcmaster.com",
		},
	}
}

// LoadCatalog reads a catalog from a YAML file, filling gaps from the
// default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "suppliers: read catalog")
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "suppliers: parse catalog")
	}

	def := DefaultCatalog()
	if c.Marketplace == "" {
		c.Marketplace = def.Marketplace
	}
	if len(c.Priority) == 0 {
		c.Priority = def.Priority
	}
	if c.Aliases == nil {
		c.Aliases = def.Aliases
	}
	return &c, nil
}

// Canonicalize normalizes a domain (trim, lower-case, strip scheme and
// "www." prefix) and collapses known aliases onto the canonical spelling.
func (c *Catalog) Canonicalize(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimSuffix(d, "/")
	d = strings.TrimPrefix(d, "www.")
	if canonical, ok := c.Aliases[d]; ok {
		return canonical
	}
	return d
}

// Expand returns every known spelling of a canonical domain: the domain
// itself plus all aliases that collapse onto it. Search queries cover all
// spellings so historical correspondence is found regardless of which domain
// a supplier sent from at the time.
func (c *Catalog) Expand(domain string) []string {
	canonical := c.Canonicalize(domain)
	var aliases []string
	for alias, target := range c.Aliases {
		if target == canonical {
			aliases = append(aliases, alias)
		}
	}
	sort.Strings(aliases)
	return append([]string{canonical}, aliases...)
}

// IsMarketplace reports whether the domain canonicalizes to the primary
// marketplace.
func (c *Catalog) IsMarketplace(domain string) bool {
	return c.Canonicalize(domain) == c.Canonicalize(c.Marketplace)
}
