package adk

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"vismadk/src/helpers"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

// EntityDef describes one entity type the embedded driver serves.
// Row* fields are empty for entities without a repeating group.
type EntityDef struct {
	Symbol        string
	Fields        []FieldDef
	RowEntity     string
	RowCountField string
	RowBlockField string
}

type FieldDef struct {
	Symbol string
	Type   FieldType
}

type fieldInfo struct {
	entity string
	symbol string
	typ    FieldType
}

type memRecord struct {
	values map[FieldID]any
	rows   []*memRecord
}

type filterPred struct {
	id   FieldID
	expr string
}

// dataBuf is the staging buffer behind one DataHandle. A buffer either
// stages a record of its own (top level) or is a live view onto one row
// of a parent record.
type dataBuf struct {
	entity  *EntityDef
	values  map[FieldID]any
	filter  *filterPred
	cursor  int
	current *memRecord
	staged  []*memRecord
	row     *memRecord
}

type dataset struct {
	records map[string][]*memRecord
}

// MemDriver is an in-memory Driver implementation. It backs the tests
// and the demo binary, and can persist its datasets as BSON snapshots.
type MemDriver struct {
	mu     sync.Mutex
	logger *zap.SugaredLogger

	username string
	salt     []byte
	passHash []byte

	entities      map[string]*EntityDef
	fieldBySymbol map[string]FieldID
	fields        map[FieldID]fieldInfo
	nextID        FieldID

	companies map[string]*dataset
	active    *dataset

	handles map[DataHandle]*dataBuf
}

// NewMemDriver creates an empty embedded driver. Define entities and add
// companies before opening it.
func NewMemDriver(logger *zap.SugaredLogger) *MemDriver {
	return &MemDriver{
		logger:        logger,
		entities:      make(map[string]*EntityDef),
		fieldBySymbol: make(map[string]FieldID),
		fields:        make(map[FieldID]fieldInfo),
		nextID:        1,
		companies:     make(map[string]*dataset),
		handles:       make(map[DataHandle]*dataBuf),
	}
}

// SetCredentials stores the login the driver accepts on Open. The
// password is kept only as an argon2id digest.
func (d *MemDriver) SetCredentials(username, password string) error {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.username = username
	d.salt = salt
	d.passHash = argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return nil
}

// DefineEntity registers one entity schema and assigns field identifiers
// to its symbols. Symbols are global across entities, like the constants
// exposed by the native wrapper.
func (d *MemDriver) DefineEntity(def EntityDef) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.entities[def.Symbol]; exists {
		return fmt.Errorf("entity %s already defined", def.Symbol)
	}

	for _, f := range def.Fields {
		if _, exists := d.fieldBySymbol[f.Symbol]; exists {
			return fmt.Errorf("field symbol %s already defined", f.Symbol)
		}
		id := d.nextID
		d.nextID++
		d.fieldBySymbol[f.Symbol] = id
		d.fields[id] = fieldInfo{entity: def.Symbol, symbol: f.Symbol, typ: f.Type}
	}

	cp := def
	d.entities[def.Symbol] = &cp
	return nil
}

// AddCompany creates an empty dataset reachable through Open under the
// given company path.
func (d *MemDriver) AddCompany(companyPath string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.companies[companyPath] = &dataset{records: make(map[string][]*memRecord)}
}

// Seed inserts one record directly into a company dataset, bypassing the
// handle layer. Values are keyed by field symbol. Row values, if any,
// belong to the entity's row entity.
func (d *MemDriver) Seed(companyPath, entity string, values map[string]any, rows []map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ds, ok := d.companies[companyPath]
	if !ok {
		return fmt.Errorf("company path %s not found", companyPath)
	}
	def, ok := d.entities[entity]
	if !ok {
		return fmt.Errorf("entity %s not defined", entity)
	}

	rec := &memRecord{values: make(map[FieldID]any)}
	if err := d.fillLocked(rec.values, entity, values); err != nil {
		return err
	}
	for _, rv := range rows {
		row := &memRecord{values: make(map[FieldID]any)}
		if err := d.fillLocked(row.values, def.RowEntity, rv); err != nil {
			return err
		}
		rec.rows = append(rec.rows, row)
	}
	if len(rec.rows) > 0 && def.RowCountField != "" {
		rec.values[d.fieldBySymbol[def.RowCountField]] = float64(len(rec.rows))
	}

	ds.records[entity] = append(ds.records[entity], rec)
	return nil
}

func (d *MemDriver) fillLocked(dst map[FieldID]any, entity string, values map[string]any) error {
	for symbol, v := range values {
		id, ok := d.fieldBySymbol[symbol]
		if !ok || d.fields[id].entity != entity {
			return fmt.Errorf("field %s is not a valid field of %s", symbol, entity)
		}
		cv, err := coerceValue(d.fields[id].typ, v)
		if err != nil {
			return fmt.Errorf("field %s: %w", symbol, err)
		}
		dst[id] = cv
	}
	return nil
}

func coerceValue(t FieldType, v any) (any, error) {
	switch t {
	case FieldTypeText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected text, got %T", v)
		}
		return s, nil
	case FieldTypeNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, fmt.Errorf("expected number, got %T", v)
	case FieldTypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case FieldTypeDate:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("expected date, got %T", v)
		}
		return ts, nil
	}
	return nil, fmt.Errorf("unusable field type %v", t)
}

var errorTexts = map[int]string{
	CodeNotFound:    "no matching record found",
	CodeNoCompany:   "no company is open",
	CodeUnknownPath: "unknown company path",
	CodeAuthFailed:  "invalid username or password",
	CodeBadHandle:   "invalid data handle",
	CodeBadField:    "field does not belong to this record type",
	CodeNoCurrent:   "record buffer is not positioned on a record",
	CodeBadRow:      "row index out of range",
	CodeBadFilter:   "filter rejected",
}

func (d *MemDriver) ErrorText(s Status) string {
	if text, ok := errorTexts[s.Code]; ok {
		return text
	}
	return fmt.Sprintf("unknown driver error %d", s.Code)
}

func (d *MemDriver) Open(commonPath, companyPath, username, password string) Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if username != d.username {
		return Status{Code: CodeAuthFailed}
	}
	digest := argon2.IDKey([]byte(password), d.salt, 1, 64*1024, 4, 32)
	if subtle.ConstantTimeCompare(digest, d.passHash) != 1 {
		return Status{Code: CodeAuthFailed}
	}

	ds, ok := d.companies[companyPath]
	if !ok {
		return Status{Code: CodeUnknownPath}
	}

	d.active = ds
	if d.logger != nil {
		d.logger.Infow("company opened", "companyPath", companyPath)
	}
	return Status{}
}

func (d *MemDriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = nil
}

func (d *MemDriver) Entities() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	symbols := make([]string, 0, len(d.entities))
	for symbol := range d.entities {
		symbols = append(symbols, symbol)
	}
	return symbols
}

func (d *MemDriver) FieldSymbols(entity string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	def, ok := d.entities[entity]
	if !ok {
		return nil
	}
	symbols := make([]string, 0, len(def.Fields))
	for _, f := range def.Fields {
		symbols = append(symbols, f.Symbol)
	}
	return symbols
}

func (d *MemDriver) FieldID(entity, symbol string) (FieldID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.fieldBySymbol[symbol]
	if !ok || d.fields[id].entity != entity {
		return 0, false
	}
	return id, true
}

func (d *MemDriver) FieldType(h DataHandle, id FieldID) FieldType {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.handles[h]
	if !ok {
		return FieldTypeUnused
	}
	info, ok := d.fields[id]
	if !ok || info.entity != buf.entity.Symbol {
		return FieldTypeUnused
	}
	return info.typ
}

func (d *MemDriver) CreateData(entity string) (DataHandle, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	def, ok := d.entities[entity]
	if !ok {
		return "", Status{Code: CodeBadHandle}
	}
	h := DataHandle(helpers.GenerateUUID())
	d.handles[h] = &dataBuf{entity: def, values: make(map[FieldID]any)}
	return h, Status{}
}

func (d *MemDriver) DeleteStruct(h DataHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handles, h)
}

// valuesOf returns the map a buffer reads and writes: the row record for
// row views, the staging values otherwise.
func (b *dataBuf) valuesOf() map[FieldID]any {
	if b.row != nil {
		return b.row.values
	}
	return b.values
}

// rowsOf returns a pointer to the row slice the buffer operates on: the
// bound record's rows when positioned, the staged rows otherwise.
func (b *dataBuf) rowsOf() *[]*memRecord {
	if b.current != nil {
		return &b.current.rows
	}
	return &b.staged
}

func (d *MemDriver) checkField(h DataHandle, id FieldID, t FieldType) (*dataBuf, Status) {
	buf, ok := d.handles[h]
	if !ok {
		return nil, Status{Code: CodeBadHandle}
	}
	info, ok := d.fields[id]
	if !ok || info.entity != buf.entity.Symbol || info.typ != t {
		return nil, Status{Code: CodeBadField}
	}
	return buf, Status{}
}

func (d *MemDriver) GetText(h DataHandle, id FieldID, def string) (string, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, st := d.checkField(h, id, FieldTypeText)
	if !st.OK() {
		return def, st
	}
	if v, ok := buf.valuesOf()[id].(string); ok {
		return v, Status{}
	}
	return def, Status{}
}

func (d *MemDriver) GetNumber(h DataHandle, id FieldID, def float64) (float64, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, st := d.checkField(h, id, FieldTypeNumber)
	if !st.OK() {
		return def, st
	}
	if v, ok := buf.valuesOf()[id].(float64); ok {
		return v, Status{}
	}
	return def, Status{}
}

func (d *MemDriver) GetBool(h DataHandle, id FieldID, def bool) (bool, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, st := d.checkField(h, id, FieldTypeBool)
	if !st.OK() {
		return def, st
	}
	if v, ok := buf.valuesOf()[id].(bool); ok {
		return v, Status{}
	}
	return def, Status{}
}

func (d *MemDriver) GetDate(h DataHandle, id FieldID, def time.Time) (time.Time, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, st := d.checkField(h, id, FieldTypeDate)
	if !st.OK() {
		return def, st
	}
	if v, ok := buf.valuesOf()[id].(time.Time); ok {
		return v, Status{}
	}
	return def, Status{}
}

func (d *MemDriver) SetText(h DataHandle, id FieldID, v string) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, st := d.checkField(h, id, FieldTypeText)
	if !st.OK() {
		return st
	}
	buf.valuesOf()[id] = v
	return Status{}
}

func (d *MemDriver) SetNumber(h DataHandle, id FieldID, v float64) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, st := d.checkField(h, id, FieldTypeNumber)
	if !st.OK() {
		return st
	}
	buf.valuesOf()[id] = v
	return Status{}
}

func (d *MemDriver) SetBool(h DataHandle, id FieldID, v bool) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, st := d.checkField(h, id, FieldTypeBool)
	if !st.OK() {
		return st
	}
	buf.valuesOf()[id] = v
	return Status{}
}

func (d *MemDriver) SetDate(h DataHandle, id FieldID, v time.Time) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, st := d.checkField(h, id, FieldTypeDate)
	if !st.OK() {
		return st
	}
	buf.valuesOf()[id] = v
	return Status{}
}

func (d *MemDriver) SetFilter(h DataHandle, id FieldID, expr string) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.handles[h]
	if !ok {
		return Status{Code: CodeBadHandle}
	}
	info, ok := d.fields[id]
	if !ok || info.entity != buf.entity.Symbol {
		return Status{Code: CodeBadFilter}
	}
	buf.filter = &filterPred{id: id, expr: expr}
	return Status{}
}

func (d *MemDriver) matches(rec *memRecord, f *filterPred) bool {
	if f == nil {
		return true
	}
	info := d.fields[f.id]
	v, present := rec.values[f.id]

	switch info.typ {
	case FieldTypeText:
		s, _ := v.(string)
		if strings.HasSuffix(f.expr, "*") {
			return strings.HasPrefix(s, strings.TrimSuffix(f.expr, "*"))
		}
		return present && s == f.expr
	case FieldTypeNumber:
		want, err := strconv.ParseFloat(f.expr, 64)
		if err != nil {
			return false
		}
		n, _ := v.(float64)
		return present && n == want
	case FieldTypeBool:
		b, _ := v.(bool)
		return present && b == (f.expr == "1" || f.expr == "true")
	case FieldTypeDate:
		want, err := time.Parse("2006-01-02", f.expr)
		if err != nil {
			return false
		}
		ts, _ := v.(time.Time)
		return present && ts.Format("2006-01-02") == want.Format("2006-01-02")
	}
	return false
}

func (d *MemDriver) moveTo(h DataHandle, from int) Status {
	buf, ok := d.handles[h]
	if !ok {
		return Status{Code: CodeBadHandle}
	}
	if d.active == nil {
		return Status{Code: CodeNoCompany}
	}

	recs := d.active.records[buf.entity.Symbol]
	for i := from; i < len(recs); i++ {
		if d.matches(recs[i], buf.filter) {
			buf.cursor = i
			buf.current = recs[i]
			buf.values = make(map[FieldID]any, len(recs[i].values))
			for id, v := range recs[i].values {
				buf.values[id] = v
			}
			return Status{}
		}
	}
	return Status{Code: CodeNotFound}
}

func (d *MemDriver) MoveFirst(h DataHandle, includeRows bool) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.moveTo(h, 0)
}

func (d *MemDriver) MoveNext(h DataHandle, includeRows bool) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.handles[h]
	if !ok {
		return Status{Code: CodeBadHandle}
	}
	if buf.current == nil {
		return Status{Code: CodeNoCurrent}
	}
	return d.moveTo(h, buf.cursor+1)
}

func (d *MemDriver) Add(h DataHandle) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.handles[h]
	if !ok {
		return Status{Code: CodeBadHandle}
	}
	if d.active == nil {
		return Status{Code: CodeNoCompany}
	}

	rec := &memRecord{values: make(map[FieldID]any, len(buf.values)), rows: buf.staged}
	for id, v := range buf.values {
		rec.values[id] = v
	}
	d.active.records[buf.entity.Symbol] = append(d.active.records[buf.entity.Symbol], rec)
	buf.current = rec
	buf.staged = nil
	buf.cursor = len(d.active.records[buf.entity.Symbol]) - 1
	return Status{}
}

func (d *MemDriver) Update(h DataHandle) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.handles[h]
	if !ok {
		return Status{Code: CodeBadHandle}
	}
	if buf.row != nil {
		// Row views write through on set.
		return Status{}
	}
	if buf.current == nil {
		return Status{Code: CodeNoCurrent}
	}
	for id, v := range buf.values {
		buf.current.values[id] = v
	}
	return Status{}
}

func (d *MemDriver) DeleteRecord(h DataHandle) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.handles[h]
	if !ok {
		return Status{Code: CodeBadHandle}
	}
	if d.active == nil {
		return Status{Code: CodeNoCompany}
	}
	if buf.current == nil {
		return Status{Code: CodeNoCurrent}
	}

	recs := d.active.records[buf.entity.Symbol]
	for i, rec := range recs {
		if rec == buf.current {
			d.active.records[buf.entity.Symbol] = append(recs[:i], recs[i+1:]...)
			break
		}
	}
	buf.current = nil
	return Status{}
}

func (d *MemDriver) DeleteRow(parent DataHandle, rowIndex int) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.handles[parent]
	if !ok {
		return Status{Code: CodeBadHandle}
	}
	rows := buf.rowsOf()
	if rowIndex < 1 || rowIndex > len(*rows) {
		return Status{Code: CodeBadRow}
	}
	*rows = append((*rows)[:rowIndex-1], (*rows)[rowIndex:]...)
	return Status{}
}

func (d *MemDriver) RowEntityOf(entity string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	def, ok := d.entities[entity]
	if !ok || def.RowEntity == "" {
		return "", false
	}
	return def.RowEntity, true
}

func (d *MemDriver) RowCountFieldOf(entity string) (FieldID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	def, ok := d.entities[entity]
	if !ok || def.RowCountField == "" {
		return 0, false
	}
	id, ok := d.fieldBySymbol[def.RowCountField]
	return id, ok
}

func (d *MemDriver) RowBlockFieldOf(entity string) (FieldID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	def, ok := d.entities[entity]
	if !ok || def.RowBlockField == "" {
		return 0, false
	}
	id, ok := d.fieldBySymbol[def.RowBlockField]
	return id, ok
}

func (d *MemDriver) GetRow(h DataHandle, index int) (DataHandle, Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.handles[h]
	if !ok {
		return "", Status{Code: CodeBadHandle}
	}
	rowDef, ok := d.entities[buf.entity.RowEntity]
	if !ok {
		return "", Status{Code: CodeBadRow}
	}
	rows := buf.rowsOf()
	if index < 1 || index > len(*rows) {
		return "", Status{Code: CodeBadRow}
	}

	rh := DataHandle(helpers.GenerateUUID())
	d.handles[rh] = &dataBuf{entity: rowDef, row: (*rows)[index-1]}
	return rh, Status{}
}

func (d *MemDriver) AllocateRows(h DataHandle, total int) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.handles[h]
	if !ok {
		return Status{Code: CodeBadHandle}
	}
	if buf.entity.RowEntity == "" {
		return Status{Code: CodeBadRow}
	}
	rows := buf.rowsOf()
	if total < len(*rows) {
		return Status{Code: CodeBadRow}
	}
	for len(*rows) < total {
		*rows = append(*rows, &memRecord{values: make(map[FieldID]any)})
	}
	return Status{}
}
