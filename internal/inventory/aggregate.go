// Package inventory derives per-item consumption statistics and reorder
// recommendations from extracted order history.
package inventory

import (
	"math"
	"sort"
	"time"

	"github.com/arda-labs/reorder-cli/internal/model"
)

// Reorder policy constants.
const (
	// LeadTimeDays is the assumed supplier lead time.
	LeadTimeDays = 7

	// SafetyFactor pads the reorder point against demand variance.
	SafetyFactor = 1.5

	// DefaultCadenceDays stands in for the order cadence when the history
	// is too thin to estimate one (fewer than two orders, or all orders on
	// one day).
	DefaultCadenceDays = 30

	// MinCoverageDays floors the recommended order quantity at one month
	// of consumption.
	MinCoverageDays = 30
)

// Profile holds the derived velocity statistics for one tracked item,
// keyed by normalized item name.
type Profile struct {
	Name                string     `json:"name"`
	DisplayName         string     `json:"display_name"`
	Unit                string     `json:"unit"`
	Suppliers           []string   `json:"suppliers"`
	TotalQuantity       float64    `json:"total_quantity"`
	OrderCount          int        `json:"order_count"`
	FirstOrderDate      time.Time  `json:"first_order_date"`
	LastOrderDate       time.Time  `json:"last_order_date"`
	DaySpan             int        `json:"day_span"`
	AverageCadenceDays  float64    `json:"average_cadence_days"`
	DailyBurnRate       float64    `json:"daily_burn_rate"`
	RecommendedMin      int        `json:"recommended_min"`
	RecommendedOrderQty int        `json:"recommended_order_qty"`
	NextPredictedOrder  time.Time  `json:"next_predicted_order"`
	LastUnitPrice       *float64   `json:"last_unit_price,omitempty"`
}

// observation is one dated quantity sighting of an item.
type observation struct {
	date      time.Time
	quantity  float64
	unitPrice *float64
}

type itemAccum struct {
	displayName string
	unit        string
	suppliers   map[string]struct{}
	orders      map[string]struct{}
	obs         []observation
}

// Aggregate folds the full order history into one profile per distinct
// normalized item name. It is a deterministic, side-effect-free transform:
// the input is never mutated and the same order list always yields the same
// profiles, sorted by name.
func Aggregate(orders []model.ExtractedOrder) []Profile {
	items := make(map[string]*itemAccum)

	for _, order := range orders {
		for _, it := range order.Items {
			key := it.Key()
			if key == "" {
				continue
			}
			acc, ok := items[key]
			if !ok {
				acc = &itemAccum{
					displayName: it.Name,
					unit:        it.Unit,
					suppliers:   make(map[string]struct{}),
					orders:      make(map[string]struct{}),
				}
				items[key] = acc
			}
			acc.suppliers[order.Supplier] = struct{}{}
			acc.orders[order.ID] = struct{}{}
			acc.obs = append(acc.obs, observation{
				date:      order.OrderDate,
				quantity:  it.Quantity,
				unitPrice: it.UnitPrice,
			})
		}
	}

	profiles := make([]Profile, 0, len(items))
	for key, acc := range items {
		profiles = append(profiles, buildProfile(key, acc))
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})
	return profiles
}

func buildProfile(key string, acc *itemAccum) Profile {
	sort.SliceStable(acc.obs, func(i, j int) bool {
		return acc.obs[i].date.Before(acc.obs[j].date)
	})

	var total float64
	for _, o := range acc.obs {
		total += o.quantity
	}

	first := acc.obs[0].date
	last := acc.obs[len(acc.obs)-1].date
	daySpan := int(last.Sub(first).Hours() / 24)
	orderCount := len(acc.orders)

	// Cadence needs at least two orders on distinct days; otherwise fall
	// back to the default rather than reporting a zero cadence.
	cadence := float64(DefaultCadenceDays)
	if orderCount > 1 && daySpan > 0 {
		cadence = float64(daySpan) / float64(orderCount-1)
	}

	// A single-day cluster of orders is not infinite daily consumption.
	effectiveSpan := float64(daySpan)
	if daySpan == 0 {
		effectiveSpan = DefaultCadenceDays
	}
	burnRate := total / effectiveSpan

	recommendedMin := int(math.Ceil(burnRate * LeadTimeDays * SafetyFactor))
	recommendedQty := int(math.Ceil(burnRate * math.Max(cadence, MinCoverageDays)))

	var lastPrice *float64
	for i := len(acc.obs) - 1; i >= 0; i-- {
		if acc.obs[i].unitPrice != nil {
			lastPrice = acc.obs[i].unitPrice
			break
		}
	}

	suppliers := make([]string, 0, len(acc.suppliers))
	for s := range acc.suppliers {
		suppliers = append(suppliers, s)
	}
	sort.Strings(suppliers)

	return Profile{
		Name:                key,
		DisplayName:         acc.displayName,
		Unit:                acc.unit,
		Suppliers:           suppliers,
		TotalQuantity:       total,
		OrderCount:          orderCount,
		FirstOrderDate:      first,
		LastOrderDate:       last,
		DaySpan:             daySpan,
		AverageCadenceDays:  cadence,
		DailyBurnRate:       burnRate,
		RecommendedMin:      recommendedMin,
		RecommendedOrderQty: recommendedQty,
		NextPredictedOrder:  last.Add(time.Duration(cadence * 24 * float64(time.Hour))),
		LastUnitPrice:       lastPrice,
	}
}
