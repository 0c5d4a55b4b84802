package query

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"vismadk/src/adk"
	"vismadk/src/catalog"
	"vismadk/src/records"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no record matches a FindFirst filter.
var ErrNotFound = errors.New("record not found")

// ErrInvalidFilter is returned when the driver rejects a filter
// predicate, or when a predicate value cannot be expressed as a filter.
var ErrInvalidFilter = errors.New("invalid filter")

// ErrCursorAdvance is surfaced by Rows.Err when an advance fails for a
// reason other than the driver's no-more-matches signal.
var ErrCursorAdvance = errors.New("failed to advance cursor")

// Cursor drives the driver's first/next primitives over one entity type
// at a time.
type Cursor struct {
	driver  adk.Driver
	catalog *catalog.FieldCatalog
	logger  *zap.SugaredLogger
}

func NewCursor(driver adk.Driver, cat *catalog.FieldCatalog, logger *zap.SugaredLogger) *Cursor {
	return &Cursor{driver: driver, catalog: cat, logger: logger}
}

func filterExpr(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		return t.Format("2006-01-02"), nil
	case primitive.Decimal128:
		return t.String(), nil
	}
	return "", fmt.Errorf("%w: cannot filter on %T value", ErrInvalidFilter, v)
}

// applyFilter applies the predicates to a record buffer. The driver
// keeps a single predicate per buffer, so with more than one entry only
// the last applied one takes effect.
func (c *Cursor) applyFilter(rec *records.Record, filter map[string]any) error {
	for field, term := range filter {
		fd, err := c.catalog.Resolve(rec.Entity(), field)
		if err != nil {
			return err
		}
		expr, err := filterExpr(term)
		if err != nil {
			return err
		}
		if st := c.driver.SetFilter(rec.Handle(), fd.ID, expr); !st.OK() {
			return fmt.Errorf("%w: %s on %s: %s", ErrInvalidFilter, field, rec.Entity(), c.driver.ErrorText(st))
		}
	}
	return nil
}

// FindFirst returns the first record matching the filter, or ErrNotFound
// carrying the driver's error text. The caller owns the returned record.
func (c *Cursor) FindFirst(entity string, filter map[string]any) (*records.Record, error) {
	rec, err := records.New(c.driver, c.catalog, c.logger, entity)
	if err != nil {
		return nil, err
	}
	if err := c.applyFilter(rec, filter); err != nil {
		rec.Release()
		return nil, err
	}
	if st := c.driver.MoveFirst(rec.Handle(), true); !st.OK() {
		text := c.driver.ErrorText(st)
		rec.Release()
		return nil, fmt.Errorf("%w: %s: %s", ErrNotFound, entity, text)
	}
	return rec, nil
}

// FindAll returns a lazy result set over every matching record. An empty
// match set is a result set that yields nothing, not an error.
func (c *Cursor) FindAll(entity string, filter map[string]any) (*Rows, error) {
	rec, err := records.New(c.driver, c.catalog, c.logger, entity)
	if err != nil {
		return nil, err
	}
	if err := c.applyFilter(rec, filter); err != nil {
		rec.Release()
		return nil, err
	}
	return &Rows{driver: c.driver, rec: rec}, nil
}

// Rows is a single-cursor result set: every advance repositions the one
// underlying record buffer, so values read from a previously yielded
// Record are invalidated by the next call to Next. Copy values out
// before advancing if they must be retained. The sequence is consumed in
// one pass and is not restartable. Always Close a result set; check Err
// after the loop to tell a driver failure from clean exhaustion.
type Rows struct {
	driver  adk.Driver
	rec     *records.Record
	started bool
	done    bool
	err     error
}

// Next advances to the next matching record. It returns false when the
// driver signals no more rows; that is normal termination, not an
// error. Any other non-OK status also ends the sequence but is kept for
// Err.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}

	var st adk.Status
	if !r.started {
		r.started = true
		st = r.driver.MoveFirst(r.rec.Handle(), true)
	} else {
		st = r.driver.MoveNext(r.rec.Handle(), true)
	}

	if st.OK() {
		return true
	}
	r.done = true
	if st.Code != adk.CodeNotFound {
		r.err = fmt.Errorf("%w on %s: %s", ErrCursorAdvance, r.rec.Entity(), r.driver.ErrorText(st))
	}
	return false
}

// Record returns the record positioned by the last successful Next. The
// same accessor is reused for every row; it stays readable after
// exhaustion until Close.
func (r *Rows) Record() *records.Record {
	return r.rec
}

// Err reports the driver failure that ended the sequence, if any. Nil
// after clean exhaustion.
func (r *Rows) Err() error {
	return r.err
}

// Close releases the underlying record buffer. Safe to call after
// exhaustion or more than once.
func (r *Rows) Close() {
	r.done = true
	r.rec.Release()
}
