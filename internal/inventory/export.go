package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/arda-labs/reorder-cli/internal/model"
)

// Day-based figures export at 2 decimal places; burn rate keeps 4 so the
// export carries more precision than the display layer.
const (
	dayPrecision  = 2
	ratePrecision = 4
)

var profileColumns = []string{
	"Item",
	"Display Name",
	"Unit",
	"Suppliers",
	"Total Quantity",
	"Order Count",
	"First Order",
	"Last Order",
	"Day Span",
	"Avg Cadence (days)",
	"Daily Burn Rate",
	"Recommended Min",
	"Recommended Order Qty",
	"Next Predicted Order",
	"Last Unit Price",
}

var orderColumns = []string{
	"Order ID",
	"Email ID",
	"Supplier",
	"Order Date",
	"Item",
	"Normalized Item",
	"Quantity",
	"Unit",
	"Unit Price",
	"SKU",
	"ASIN",
	"Order Total",
	"Confidence",
}

func profileRow(p Profile) []string {
	joinedSuppliers := ""
	for i, s := range p.Suppliers {
		if i > 0 {
			joinedSuppliers += "; "
		}
		joinedSuppliers += s
	}

	lastPrice := ""
	if p.LastUnitPrice != nil {
		lastPrice = strconv.FormatFloat(*p.LastUnitPrice, 'f', 2, 64)
	}

	return []string{
		p.Name,
		p.DisplayName,
		p.Unit,
		joinedSuppliers,
		strconv.FormatFloat(p.TotalQuantity, 'f', -1, 64),
		strconv.Itoa(p.OrderCount),
		p.FirstOrderDate.Format("2006-01-02"),
		p.LastOrderDate.Format("2006-01-02"),
		strconv.Itoa(p.DaySpan),
		strconv.FormatFloat(p.AverageCadenceDays, 'f', dayPrecision, 64),
		strconv.FormatFloat(p.DailyBurnRate, 'f', ratePrecision, 64),
		strconv.Itoa(p.RecommendedMin),
		strconv.Itoa(p.RecommendedOrderQty),
		p.NextPredictedOrder.Format("2006-01-02"),
		lastPrice,
	}
}

// WriteProfilesCSV writes velocity profiles as CSV.
func WriteProfilesCSV(w io.Writer, profiles []Profile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(profileColumns); err != nil {
		return eris.Wrap(err, "inventory export: write header")
	}
	for _, p := range profiles {
		if err := cw.Write(profileRow(p)); err != nil {
			return eris.Wrap(err, "inventory export: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "inventory export: flush")
}

// WriteOrdersCSV writes extracted orders as CSV, one row per line item.
func WriteOrdersCSV(w io.Writer, orders []model.ExtractedOrder) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(orderColumns); err != nil {
		return eris.Wrap(err, "order export: write header")
	}

	for _, o := range orders {
		total := ""
		if o.TotalAmount != nil {
			total = strconv.FormatFloat(*o.TotalAmount, 'f', 2, 64)
		}
		for _, it := range o.Items {
			price := ""
			if it.UnitPrice != nil {
				price = strconv.FormatFloat(*it.UnitPrice, 'f', 2, 64)
			}
			row := []string{
				o.ID,
				o.OriginalEmailID,
				o.Supplier,
				o.OrderDate.Format("2006-01-02"),
				it.Name,
				it.Key(),
				strconv.FormatFloat(it.Quantity, 'f', -1, 64),
				it.Unit,
				price,
				it.SKU,
				it.ASIN,
				total,
				strconv.FormatFloat(o.Confidence, 'f', 2, 64),
			}
			if err := cw.Write(row); err != nil {
				return eris.Wrap(err, "order export: write row")
			}
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "order export: flush")
}

// WriteProfilesXLSX writes velocity profiles as a single-sheet XLSX file.
func WriteProfilesXLSX(path string, profiles []Profile) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Reorder Recommendations")
	if err != nil {
		return eris.Wrap(err, "inventory export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range profileColumns {
		header.AddCell().Value = col
	}
	for _, p := range profiles {
		row := sheet.AddRow()
		for _, val := range profileRow(p) {
			row.AddCell().Value = val
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, fmt.Sprintf("inventory export: save %s", path))
	}
	return nil
}
