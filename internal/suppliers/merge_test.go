package suppliers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arda-labs/reorder-cli/internal/model"
)

func findDomain(t *testing.T, list []model.DiscoveredSupplier, domain string) model.DiscoveredSupplier {
	t.Helper()
	for _, s := range list {
		if s.Domain == domain {
			return s
		}
	}
	t.Fatalf("domain %s not in merged list", domain)
	return model.DiscoveredSupplier{}
}

func TestMergeAliasCollapsing(t *testing.T) {
	t.Parallel()
	c := DefaultCatalog()

	discovered := []model.DiscoveredSupplier{
		{Domain: "mcmaster-carr.com", EmailCount: 12, Score: 40, Category: model.CategoryUnknown,
			SampleSubjects: []string{"Your McMaster-Carr order"}},
		{Domain: "mcmaster.com", EmailCount: 8, Score: 55, Category: "industrial",
			SampleSubjects: []string{"Order shipped"}},
	}

	out := Merge(c, discovered)
	m := findDomain(t, out, "mcmaster.com")

	// 12 + 8 discovered; the catalog priority record contributes no count.
	assert.Equal(t, 20, m.EmailCount)
	assert.Equal(t, float64(90), m.Score) // catalog score is the max
	assert.Equal(t, "industrial", m.Category)
	assert.Contains(t, m.SampleSubjects, "Your McMaster-Carr order")
	assert.Contains(t, m.SampleSubjects, "Order shipped")
	assert.True(t, m.IsRecommended)

	// The legacy spelling must not appear as its own entry.
	for _, s := range out {
		assert.NotEqual(t, "mcmaster-carr.com", s.Domain)
	}
}

func TestMergeExcludesMarketplace(t *testing.T) {
	t.Parallel()
	c := DefaultCatalog()

	out := Merge(c, []model.DiscoveredSupplier{
		{Domain: "amazon.com", EmailCount: 500, Score: 99},
		{Domain: "www.amazon.com", EmailCount: 10, Score: 10},
		{Domain: "newvendor.io", EmailCount: 3, Score: 20},
	})

	for _, s := range out {
		assert.NotEqual(t, "amazon.com", s.Domain)
	}
	findDomain(t, out, "newvendor.io")
}

func TestMergeOrdering(t *testing.T) {
	t.Parallel()
	c := DefaultCatalog()

	out := Merge(c, []model.DiscoveredSupplier{
		{Domain: "lowscore.io", Score: 5, EmailCount: 1},
		{Domain: "highscore.io", Score: 80, EmailCount: 9},
		{Domain: "midscore.io", Score: 50, EmailCount: 4},
	})

	// Priority suppliers first, in catalog order.
	require.GreaterOrEqual(t, len(out), 7)
	assert.Equal(t, "uline.com", out[0].Domain)
	assert.Equal(t, "grainger.com", out[1].Domain)
	assert.Equal(t, "mcmaster.com", out[2].Domain)
	assert.Equal(t, "fastenal.com", out[3].Domain)

	// Then discovered suppliers by descending score.
	assert.Equal(t, "highscore.io", out[4].Domain)
	assert.Equal(t, "midscore.io", out[5].Domain)
	assert.Equal(t, "lowscore.io", out[6].Domain)
}

func TestMergeIdempotent(t *testing.T) {
	t.Parallel()
	c := DefaultCatalog()

	discovered := []model.DiscoveredSupplier{
		{Domain: "newvendor.io", EmailCount: 7, Score: 30, Category: "consumables",
			SampleSubjects: []string{"Invoice #100"}},
		{Domain: "uline-shipping.com", EmailCount: 4, Score: 20, Category: model.CategoryUnknown},
	}

	once := Merge(c, discovered)
	twice := Merge(c, once)

	assert.Equal(t, once, twice)
}

func TestMergeSubjectCap(t *testing.T) {
	t.Parallel()
	c := DefaultCatalog()

	out := Merge(c, []model.DiscoveredSupplier{
		{Domain: "chatty.io", Score: 10, SampleSubjects: []string{"a", "b", "c", "d"}},
		{Domain: "chatty.io", Score: 10, SampleSubjects: []string{"c", "d", "e", "f", "g"}},
	})

	s := findDomain(t, out, "chatty.io")
	assert.Len(t, s.SampleSubjects, 5)
	// Union keeps first occurrence order.
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, s.SampleSubjects)
}
