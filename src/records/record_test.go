package records_test

import (
	"testing"
	"time"

	"vismadk/src/adk"
	"vismadk/src/catalog"
	"vismadk/src/query"
	"vismadk/src/records"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	driver *adk.MemDriver
	cat    *catalog.FieldCatalog
	cursor *query.Cursor
	logger *zap.SugaredLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop().Sugar()

	driver, err := adk.SampleDriver(logger, "companies/test")
	require.NoError(t, err)
	require.True(t, driver.Open("common", "companies/test", "system", "sample").OK())
	t.Cleanup(driver.Close)

	cat, err := catalog.NewFieldCatalog(driver, logger)
	require.NoError(t, err)

	return &fixture{
		driver: driver,
		cat:    cat,
		cursor: query.NewCursor(driver, cat, logger),
		logger: logger,
	}
}

func (f *fixture) newRecord(t *testing.T, entity string) *records.Record {
	t.Helper()
	rec, err := records.New(f.driver, f.cat, f.logger, entity)
	require.NoError(t, err)
	t.Cleanup(rec.Release)
	return rec
}

func TestSetTypeChecking(t *testing.T) {
	f := newFixture(t)
	rec := f.newRecord(t, "supplier")

	t.Run("number field accepts every numeric width", func(t *testing.T) {
		require.NoError(t, rec.Set("supplier_credit_limit", 100))
		require.NoError(t, rec.Set("supplier_credit_limit", int64(100)))
		require.NoError(t, rec.Set("supplier_credit_limit", 100.5))

		dec, err := primitive.ParseDecimal128("1234.56")
		require.NoError(t, err)
		require.NoError(t, rec.Set("supplier_credit_limit", dec))

		v, err := rec.Get("supplier_credit_limit")
		require.NoError(t, err)
		require.InDelta(t, 1234.56, v, 1e-9)
	})

	t.Run("number field refuses a bool", func(t *testing.T) {
		err := rec.Set("supplier_credit_limit", true)
		require.ErrorIs(t, err, records.ErrTypeMismatch)
	})

	t.Run("text field refuses a number", func(t *testing.T) {
		err := rec.Set("supplier_name", 7)
		require.ErrorIs(t, err, records.ErrTypeMismatch)
	})

	t.Run("bool field refuses text", func(t *testing.T) {
		err := rec.Set("supplier_active", "yes")
		require.ErrorIs(t, err, records.ErrTypeMismatch)
	})

	t.Run("date field wants a time value", func(t *testing.T) {
		require.NoError(t, rec.Set("supplier_created", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
		err := rec.Set("supplier_created", "2024-01-02")
		require.ErrorIs(t, err, records.ErrTypeMismatch)
	})

	t.Run("unknown field never silently defaults", func(t *testing.T) {
		err := rec.Set("supplier_shoe_size", 44)
		require.ErrorIs(t, err, catalog.ErrUnknownField)
		_, err = rec.Get("supplier_shoe_size")
		require.ErrorIs(t, err, catalog.ErrUnknownField)
	})
}

func TestCreateAndRoundTrip(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	rec := f.newRecord(t, "supplier")
	created := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	require.NoError(rec.Set("supplier_number", "300"))
	require.NoError(rec.Set("supplier_name", "Roundtrip AB"))
	require.NoError(rec.Set("supplier_credit_limit", 9000.25))
	require.NoError(rec.Set("supplier_active", true))
	require.NoError(rec.Set("supplier_created", created))
	require.NoError(rec.Create())

	fresh, err := f.cursor.FindFirst("supplier", map[string]any{"supplier_number": "300"})
	require.NoError(err)
	defer fresh.Release()

	name, err := fresh.Get("supplier_name")
	require.NoError(err)
	require.Equal("Roundtrip AB", name)

	limit, err := fresh.Get("supplier_credit_limit")
	require.NoError(err)
	require.Equal(9000.25, limit)

	active, err := fresh.Get("supplier_active")
	require.NoError(err)
	require.Equal(true, active)

	ts, err := fresh.Get("supplier_created")
	require.NoError(err)
	require.Equal(created, ts)
}

func TestSaveUpdatesExistingRecord(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	rec, err := f.cursor.FindFirst("supplier", map[string]any{"supplier_name": "Northwind Traders"})
	require.NoError(err)
	defer rec.Release()

	require.NoError(rec.Set("supplier_credit_limit", 30000.0))
	require.NoError(rec.Save())

	fresh, err := f.cursor.FindFirst("supplier", map[string]any{"supplier_name": "Northwind Traders"})
	require.NoError(err)
	defer fresh.Release()

	limit, err := fresh.Get("supplier_credit_limit")
	require.NoError(err)
	require.Equal(30000.0, limit)
}

func TestDelete(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	rec := f.newRecord(t, "supplier")
	require.NoError(rec.Set("supplier_number", "900"))
	require.NoError(rec.Create())
	require.NoError(rec.Delete())

	_, err := f.cursor.FindFirst("supplier", map[string]any{"supplier_number": "900"})
	require.ErrorIs(err, query.ErrNotFound)
}

func TestRows(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	invoice, err := f.cursor.FindFirst("invoice", map[string]any{"invoice_number": "2024-001"})
	require.NoError(err)
	defer invoice.Release()

	rows, err := invoice.Rows()
	require.NoError(err)
	require.Len(rows, 1)
	defer func() {
		for _, row := range rows {
			row.Release()
		}
	}()

	require.True(rows[0].IsRow())
	require.Equal(1, rows[0].RowIndex())
	require.Equal("invoice_row", rows[0].Entity())

	text, err := rows[0].Get("invoice_row_text")
	require.NoError(err)
	require.Equal("consulting", text)

	t.Run("entity without a repeating group refuses", func(t *testing.T) {
		supplier := f.newRecord(t, "supplier")
		_, err := supplier.Rows()
		require.ErrorIs(err, records.ErrInvalidArgument)
	})
}

func TestCreateRows(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	invoice, err := f.cursor.FindFirst("invoice", map[string]any{"invoice_number": "2024-001"})
	require.NoError(err)
	defer invoice.Release()

	t.Run("non-positive quantities are rejected", func(t *testing.T) {
		_, err := invoice.CreateRows(0)
		require.ErrorIs(err, records.ErrInvalidArgument)
		_, err = invoice.CreateRows(-1)
		require.ErrorIs(err, records.ErrInvalidArgument)
	})

	newRows, err := invoice.CreateRows(2)
	require.NoError(err)
	require.Len(newRows, 2)
	require.Equal(2, newRows[0].RowIndex())
	require.Equal(3, newRows[1].RowIndex())

	require.NoError(newRows[0].Set("invoice_row_text", "travel"))
	require.NoError(newRows[1].Set("invoice_row_text", "hardware"))
	for _, row := range newRows {
		row.Release()
	}

	all, err := invoice.Rows()
	require.NoError(err)
	require.Len(all, 3)
	text, err := all[1].Get("invoice_row_text")
	require.NoError(err)
	require.Equal("travel", text)
	for _, row := range all {
		row.Release()
	}

	t.Run("row delete shrinks the group", func(t *testing.T) {
		rows, err := invoice.Rows()
		require.NoError(err)
		require.NoError(rows[2].Delete())
		for _, row := range rows {
			row.Release()
		}
		// Row count is a field on the parent; keep it in step.
		require.NoError(invoice.Set("invoice_nrows", 2))

		rows, err = invoice.Rows()
		require.NoError(err)
		require.Len(rows, 2)
		for _, row := range rows {
			row.Release()
		}
	})
}

func TestRowsOnReleasedRecord(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	invoice, err := f.cursor.FindFirst("invoice", map[string]any{"invoice_number": "2024-001"})
	require.NoError(err)
	invoice.Release()

	// A dead handle must surface as a driver failure, not as an empty
	// row group.
	_, err = invoice.Rows()
	require.ErrorIs(err, records.ErrPersistence)
	require.Contains(err.Error(), "invalid data handle")

	_, err = invoice.CreateRows(1)
	require.ErrorIs(err, records.ErrPersistence)
	require.Contains(err.Error(), "invalid data handle")
}

func TestReleaseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	rec, err := records.New(f.driver, f.cat, f.logger, "supplier")
	require.NoError(t, err)

	rec.Release()
	rec.Release()
}
