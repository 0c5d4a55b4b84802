package adk

import "time"

// FieldType is the driver's declared type tag for one field.
type FieldType int

const (
	FieldTypeUnused FieldType = iota
	FieldTypeText
	FieldTypeNumber
	FieldTypeBool
	FieldTypeDate
)

func (t FieldType) String() string {
	switch t {
	case FieldTypeText:
		return "text"
	case FieldTypeNumber:
		return "number"
	case FieldTypeBool:
		return "bool"
	case FieldTypeDate:
		return "date"
	default:
		return "unused"
	}
}

// FieldID is the driver-level identifier behind one field symbol.
type FieldID int

// DataHandle is an opaque reference to one record buffer inside the driver.
type DataHandle string

// Status is the result of a driver call. The zero value is success; the
// human-readable text behind a non-OK code comes from Driver.ErrorText.
type Status struct {
	Code int
}

const (
	CodeOK = iota
	CodeNotFound
	CodeNoCompany
	CodeUnknownPath
	CodeAuthFailed
	CodeBadHandle
	CodeBadField
	CodeNoCurrent
	CodeBadRow
	CodeBadFilter
)

func (s Status) OK() bool {
	return s.Code == CodeOK
}

// Driver is the boundary to the record database. One connection per
// process; Open switches it to a single company at a time. Every record
// buffer obtained from CreateData or GetRow must be returned with
// DeleteStruct exactly once.
type Driver interface {
	Open(commonPath, companyPath, username, password string) Status
	Close()
	ErrorText(s Status) string

	// Entities returns the driver's exposed entity symbol set (ADK_DB_*).
	Entities() []string
	// FieldSymbols returns the exposed field symbols of one entity.
	FieldSymbols(entity string) []string
	FieldID(entity, symbol string) (FieldID, bool)
	// FieldType reports FieldTypeUnused when the identifier does not
	// belong to the handle's entity.
	FieldType(h DataHandle, id FieldID) FieldType

	CreateData(entity string) (DataHandle, Status)
	DeleteStruct(h DataHandle)

	GetText(h DataHandle, id FieldID, def string) (string, Status)
	GetNumber(h DataHandle, id FieldID, def float64) (float64, Status)
	GetBool(h DataHandle, id FieldID, def bool) (bool, Status)
	GetDate(h DataHandle, id FieldID, def time.Time) (time.Time, Status)

	SetText(h DataHandle, id FieldID, v string) Status
	SetNumber(h DataHandle, id FieldID, v float64) Status
	SetBool(h DataHandle, id FieldID, v bool) Status
	SetDate(h DataHandle, id FieldID, v time.Time) Status

	// SetFilter replaces the handle's filter predicate; the handle keeps
	// at most one predicate at a time.
	SetFilter(h DataHandle, id FieldID, expr string) Status
	MoveFirst(h DataHandle, includeRows bool) Status
	MoveNext(h DataHandle, includeRows bool) Status

	Add(h DataHandle) Status
	Update(h DataHandle) Status
	DeleteRecord(h DataHandle) Status
	DeleteRow(parent DataHandle, rowIndex int) Status

	// Row-block accessors. Row indices are 1-based.
	RowEntityOf(entity string) (string, bool)
	RowCountFieldOf(entity string) (FieldID, bool)
	RowBlockFieldOf(entity string) (FieldID, bool)
	GetRow(h DataHandle, index int) (DataHandle, Status)
	AllocateRows(h DataHandle, total int) Status
}
