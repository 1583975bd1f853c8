package model

// CategoryUnknown is the placeholder category assigned to suppliers the
// discovery step could not classify. Merging prefers any other category
// over it.
const CategoryUnknown = "unknown"

// DiscoveredSupplier is a supplier surfaced by the discovery step, keyed by
// canonical domain after alias collapsing.
type DiscoveredSupplier struct {
	Domain         string   `json:"domain"`
	DisplayName    string   `json:"display_name"`
	EmailCount     int      `json:"email_count"`
	Score          float64  `json:"score"`
	Category       string   `json:"category"`
	SampleSubjects []string `json:"sample_subjects,omitempty"`
	IsRecommended  bool     `json:"is_recommended"`
}
