package records

import (
	"fmt"

	"vismadk/src/adk"
	"vismadk/src/catalog"
)

// rowBlock gathers the driver's row-block metadata for this record's
// entity type.
func (r *Record) rowBlock() (rowSymbol string, countID, blockID adk.FieldID, err error) {
	rowSymbol, ok := r.driver.RowEntityOf(r.symbol)
	if !ok {
		return "", 0, 0, fmt.Errorf("%w: %s has no repeating group", ErrInvalidArgument, r.entity)
	}
	countID, ok = r.driver.RowCountFieldOf(r.symbol)
	if !ok {
		return "", 0, 0, fmt.Errorf("%w: %s has no row count field", ErrInvalidArgument, r.entity)
	}
	blockID, ok = r.driver.RowBlockFieldOf(r.symbol)
	if !ok {
		return "", 0, 0, fmt.Errorf("%w: %s has no row block field", ErrInvalidArgument, r.entity)
	}
	return rowSymbol, countID, blockID, nil
}

func (r *Record) row(rowSymbol string, index int) (*Record, error) {
	h, st := r.driver.GetRow(r.handle, index)
	if !st.OK() {
		return nil, fmt.Errorf("%w: row %d of %s: %s", ErrPersistence, index, r.entity, r.driver.ErrorText(st))
	}
	return &Record{
		driver:   r.driver,
		catalog:  r.catalog,
		logger:   r.logger,
		entity:   catalog.NormalizeEntity(rowSymbol),
		symbol:   rowSymbol,
		handle:   h,
		parent:   r,
		rowIndex: index,
	}, nil
}

func releaseAll(recs []*Record) {
	for _, rec := range recs {
		rec.Release()
	}
}

// Rows materializes one Record per existing row of this record's
// repeating group, in row order. Each returned Record owns its own
// handle and must be Released.
func (r *Record) Rows() ([]*Record, error) {
	rowSymbol, countID, _, err := r.rowBlock()
	if err != nil {
		return nil, err
	}

	count, st := r.driver.GetNumber(r.handle, countID, 0)
	if !st.OK() {
		return nil, fmt.Errorf("%w: could not read row count of %s: %s",
			ErrPersistence, r.entity, r.driver.ErrorText(st))
	}
	rows := make([]*Record, 0, int(count))
	for i := 1; i <= int(count); i++ {
		row, err := r.row(rowSymbol, i)
		if err != nil {
			releaseAll(rows)
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CreateRows appends quantity new rows after the current count and
// returns only the new rows, indexed count+1 through count+quantity.
// The row count and the row block pointer are committed together; the
// driver gives no atomicity across the pair, so a failure between the
// two writes can leave them inconsistent.
func (r *Record) CreateRows(quantity int) ([]*Record, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: row quantity must be positive, got %d", ErrInvalidArgument, quantity)
	}

	rowSymbol, countID, blockID, err := r.rowBlock()
	if err != nil {
		return nil, err
	}

	count, st := r.driver.GetNumber(r.handle, countID, 0)
	if !st.OK() {
		return nil, fmt.Errorf("%w: could not read row count of %s: %s",
			ErrPersistence, r.entity, r.driver.ErrorText(st))
	}
	total := int(count) + quantity

	if st := r.driver.AllocateRows(r.handle, total); !st.OK() {
		return nil, fmt.Errorf("%w: could not allocate %d rows of %s: %s",
			ErrPersistence, total, r.entity, r.driver.ErrorText(st))
	}

	if st := r.driver.SetNumber(r.handle, countID, float64(total)); !st.OK() {
		return nil, fmt.Errorf("%w: could not set row count of %s: %s",
			ErrPersistence, r.entity, r.driver.ErrorText(st))
	}
	if st := r.driver.SetNumber(r.handle, blockID, float64(total)); !st.OK() {
		return nil, fmt.Errorf("%w: could not set row block of %s: %s",
			ErrPersistence, r.entity, r.driver.ErrorText(st))
	}

	rows := make([]*Record, 0, quantity)
	for i := int(count) + 1; i <= total; i++ {
		row, err := r.row(rowSymbol, i)
		if err != nil {
			releaseAll(rows)
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
