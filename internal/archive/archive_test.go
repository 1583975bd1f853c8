package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arda-labs/reorder-cli/internal/model"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	a, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() }) //nolint:errcheck
	require.NoError(t, a.Migrate(context.Background()))
	return a
}

func testOrder(id, emailID string, date time.Time) model.ExtractedOrder {
	price := 29.99
	total := 119.96
	return model.ExtractedOrder{
		ID:              id,
		OriginalEmailID: emailID,
		Supplier:        "Uline",
		OrderDate:       date,
		TotalAmount:     &total,
		Confidence:      0.9,
		Items: []model.OrderItem{
			{Name: "Nitrile Gloves", NormalizedName: "nitrile gloves", Quantity: 4, Unit: "box", UnitPrice: &price},
		},
	}
}

func TestArchive_SaveAndLoad(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	orders := []model.ExtractedOrder{
		testOrder("o2", "e2", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		testOrder("o1", "e1", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
	}
	n, err := a.SaveOrders(ctx, orders)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loaded, err := a.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	// Oldest first regardless of insert order.
	assert.Equal(t, "o1", loaded[0].ID)
	assert.Equal(t, "o2", loaded[1].ID)
	require.Len(t, loaded[0].Items, 1)
	assert.Equal(t, "nitrile gloves", loaded[0].Items[0].NormalizedName)
	require.NotNil(t, loaded[0].Items[0].UnitPrice)
	assert.InDelta(t, 29.99, *loaded[0].Items[0].UnitPrice, 1e-9)
}

func TestArchive_DuplicateEmailIgnored(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	n, err := a.SaveOrders(ctx, []model.ExtractedOrder{testOrder("o1", "e1", date)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Same source email under a fresh order ID is a re-scan, not a new order.
	n, err = a.SaveOrders(ctx, []model.ExtractedOrder{testOrder("o1-rescan", "e1", date)})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	loaded, err := a.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "o1", loaded[0].ID)
}

func TestArchive_LoadSince(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	_, err := a.SaveOrders(ctx, []model.ExtractedOrder{
		testOrder("old", "e-old", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)),
		testOrder("new", "e-new", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	loaded, err := a.LoadSince(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "new", loaded[0].ID)
}

func TestArchive_NilTotalAmount(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	o := testOrder("o1", "e1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	o.TotalAmount = nil
	_, err := a.SaveOrders(ctx, []model.ExtractedOrder{o})
	require.NoError(t, err)

	loaded, err := a.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Nil(t, loaded[0].TotalAmount)
}

func TestArchive_EmptySave(t *testing.T) {
	a := newTestArchive(t)

	n, err := a.SaveOrders(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
