package records

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"vismadk/src/adk"
	"vismadk/src/catalog"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Record is a live accessor over one record buffer in the driver. Field
// access is dispatched through the catalog's type tags, so only fields
// the driver actually exposes can be read or written.
//
// A Record owns its driver handle and must be Released exactly once on
// every path; Release is idempotent to make `defer rec.Release()` safe.
type Record struct {
	driver  adk.Driver
	catalog *catalog.FieldCatalog
	logger  *zap.SugaredLogger

	entity string // normalized entity name
	symbol string // driver entity symbol
	handle adk.DataHandle

	// set for rows of a repeating group
	parent   *Record
	rowIndex int

	release sync.Once
}

// New creates an unsaved record buffer for an entity type. Assign fields
// and call Create to persist it.
func New(driver adk.Driver, cat *catalog.FieldCatalog, logger *zap.SugaredLogger, entity string) (*Record, error) {
	symbol, err := cat.Symbol(entity)
	if err != nil {
		return nil, err
	}
	h, st := driver.CreateData(symbol)
	if !st.OK() {
		return nil, fmt.Errorf("%w: could not allocate buffer for %s: %s",
			ErrPersistence, entity, driver.ErrorText(st))
	}
	return &Record{
		driver:  driver,
		catalog: cat,
		logger:  logger,
		entity:  entity,
		symbol:  symbol,
		handle:  h,
	}, nil
}

// Entity returns the record's normalized entity name.
func (r *Record) Entity() string {
	return r.entity
}

// Handle exposes the underlying driver handle for cursor operations.
func (r *Record) Handle() adk.DataHandle {
	return r.handle
}

// IsRow reports whether this record is a row of a repeating group.
func (r *Record) IsRow() bool {
	return r.parent != nil
}

// RowIndex returns the 1-based row index, or 0 for top-level records.
func (r *Record) RowIndex() int {
	return r.rowIndex
}

// Release returns the driver handle. Idempotent; the first call wins.
func (r *Record) Release() {
	r.release.Do(func() {
		r.driver.DeleteStruct(r.handle)
	})
}

func (r *Record) resolve(field string) (catalog.FieldDescriptor, adk.FieldType, error) {
	fd, err := r.catalog.Resolve(r.entity, field)
	if err != nil {
		return catalog.FieldDescriptor{}, adk.FieldTypeUnused, err
	}
	typ, err := r.catalog.TypeOf(r.handle, fd.ID)
	if err != nil {
		return catalog.FieldDescriptor{}, adk.FieldTypeUnused, err
	}
	return fd, typ, nil
}

// Get reads one field, dispatching on the catalog's type tag. Unset
// fields read as the type's zero value, matching the native wrapper.
func (r *Record) Get(field string) (any, error) {
	fd, typ, err := r.resolve(field)
	if err != nil {
		return nil, err
	}

	switch typ {
	case adk.FieldTypeText:
		v, _ := r.driver.GetText(r.handle, fd.ID, "")
		return v, nil
	case adk.FieldTypeNumber:
		v, _ := r.driver.GetNumber(r.handle, fd.ID, 0)
		return v, nil
	case adk.FieldTypeBool:
		v, _ := r.driver.GetBool(r.handle, fd.ID, false)
		return v, nil
	default:
		v, _ := r.driver.GetDate(r.handle, fd.ID, time.Time{})
		return v, nil
	}
}

// numberValue widens any accepted numeric input to the driver's float64
// representation. Decimal128 input loses precision beyond float64; that
// boundary is inherent to the driver, not masked here.
func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Set assigns one field after checking the value against the field's
// type tag: text wants string, number wants any numeric (including
// Decimal128), bool wants bool, date wants time.Time.
func (r *Record) Set(field string, value any) error {
	fd, typ, err := r.resolve(field)
	if err != nil {
		return err
	}

	var st adk.Status
	switch typ {
	case adk.FieldTypeText:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w %T to text field %s", ErrTypeMismatch, value, fd.Name)
		}
		st = r.driver.SetText(r.handle, fd.ID, s)
	case adk.FieldTypeNumber:
		n, ok := numberValue(value)
		if !ok {
			return fmt.Errorf("%w %T to number field %s", ErrTypeMismatch, value, fd.Name)
		}
		st = r.driver.SetNumber(r.handle, fd.ID, n)
	case adk.FieldTypeBool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w %T to bool field %s", ErrTypeMismatch, value, fd.Name)
		}
		st = r.driver.SetBool(r.handle, fd.ID, b)
	default:
		ts, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("%w %T to date field %s", ErrTypeMismatch, value, fd.Name)
		}
		st = r.driver.SetDate(r.handle, fd.ID, ts)
	}

	if !st.OK() {
		return fmt.Errorf("%w %s: %s", ErrFieldWrite, fd.Name, r.driver.ErrorText(st))
	}
	return nil
}

// Save commits pending field writes to the current record.
func (r *Record) Save() error {
	if st := r.driver.Update(r.handle); !st.OK() {
		return fmt.Errorf("%w: update of %s failed: %s", ErrPersistence, r.entity, r.driver.ErrorText(st))
	}
	return nil
}

// Create persists this buffer as a brand-new record.
func (r *Record) Create() error {
	if st := r.driver.Add(r.handle); !st.OK() {
		return fmt.Errorf("%w: create of %s failed: %s", ErrPersistence, r.entity, r.driver.ErrorText(st))
	}
	return nil
}

// Delete removes the record. Rows are deleted through their parent at
// their row index; for top-level records the driver surfaces no
// explicit status, matching the native wrapper.
func (r *Record) Delete() error {
	if r.parent != nil {
		if st := r.driver.DeleteRow(r.parent.handle, r.rowIndex); !st.OK() {
			return fmt.Errorf("%w: delete of %s row %d failed: %s",
				ErrPersistence, r.entity, r.rowIndex, r.driver.ErrorText(st))
		}
		return nil
	}
	r.driver.DeleteRecord(r.handle)
	return nil
}
