package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"vismadk/src/adk"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	entityPrefix = "ADK_DB_"
	fieldPrefix  = "ADK_"

	// Entity field tables are small but numerous; the cache bound keeps
	// a long-running process from holding every table it ever touched.
	cacheSize = 128
)

// ErrUnknownEntity is returned when an entity name resolves to nothing
// in the driver's exposed symbol set.
var ErrUnknownEntity = errors.New("unknown entity type")

// ErrUnknownField is returned when a field name resolves to nothing, or
// when the driver reports a field identifier as unused.
var ErrUnknownField = errors.New("unknown field")

// FieldDescriptor is one resolved field of one entity type.
type FieldDescriptor struct {
	Entity string
	Name   string
	Symbol string
	ID     adk.FieldID
	Type   adk.FieldType
}

// FieldCatalog resolves human-friendly entity and field names against
// the driver's exposed symbol set. Field tables are discovered once per
// entity and cached; the catalog holds no other state.
type FieldCatalog struct {
	driver adk.Driver
	logger *zap.SugaredLogger
	cache  *lru.Cache[string, map[string]FieldDescriptor]

	entOnce sync.Once
	entErr  error
	symbols map[string]string // normalized entity name -> driver symbol
}

// NewFieldCatalog creates a catalog over an already configured driver.
func NewFieldCatalog(driver adk.Driver, logger *zap.SugaredLogger) (*FieldCatalog, error) {
	cache, err := lru.New[string, map[string]FieldDescriptor](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create field table cache: %w", err)
	}
	return &FieldCatalog{driver: driver, logger: logger, cache: cache}, nil
}

// NormalizeEntity maps a driver entity symbol to its public name
// (ADK_DB_SUPPLIER -> supplier).
func NormalizeEntity(symbol string) string {
	return strings.ToLower(strings.TrimPrefix(symbol, entityPrefix))
}

// NormalizeField maps a driver field symbol to its public name
// (ADK_SUPPLIER_NAME -> supplier_name). Already-normalized input passes
// through unchanged.
func NormalizeField(symbol string) string {
	s := strings.ToLower(symbol)
	return strings.TrimPrefix(s, strings.ToLower(fieldPrefix))
}

func (c *FieldCatalog) entityTable() (map[string]string, error) {
	c.entOnce.Do(func() {
		symbols := make(map[string]string)
		for _, symbol := range c.driver.Entities() {
			name := NormalizeEntity(symbol)
			if prev, clash := symbols[name]; clash {
				c.entErr = fmt.Errorf("entity symbols %s and %s both normalize to %q", prev, symbol, name)
				return
			}
			symbols[name] = symbol
		}
		c.symbols = symbols
	})
	if c.entErr != nil {
		return nil, c.entErr
	}
	return c.symbols, nil
}

// Entities lists the normalized names of every entity type the driver
// exposes, sorted.
func (c *FieldCatalog) Entities() ([]string, error) {
	symbols, err := c.entityTable()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Symbol returns the driver symbol behind a normalized entity name.
func (c *FieldCatalog) Symbol(entity string) (string, error) {
	symbols, err := c.entityTable()
	if err != nil {
		return "", err
	}
	symbol, ok := symbols[strings.ToLower(entity)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return symbol, nil
}

func (c *FieldCatalog) table(entity string) (map[string]FieldDescriptor, error) {
	name := strings.ToLower(entity)
	if cached, ok := c.cache.Get(name); ok {
		return cached, nil
	}

	symbol, err := c.Symbol(name)
	if err != nil {
		return nil, err
	}

	// A scratch buffer is needed because the driver types fields per
	// record handle, not per entity symbol.
	h, st := c.driver.CreateData(symbol)
	if !st.OK() {
		return nil, fmt.Errorf("failed to inspect entity %s: %s", name, c.driver.ErrorText(st))
	}
	defer c.driver.DeleteStruct(h)

	table := make(map[string]FieldDescriptor)
	for _, fs := range c.driver.FieldSymbols(symbol) {
		id, ok := c.driver.FieldID(symbol, fs)
		if !ok {
			continue
		}
		typ := c.driver.FieldType(h, id)
		if typ == adk.FieldTypeUnused {
			continue
		}
		fieldName := NormalizeField(fs)
		if prev, clash := table[fieldName]; clash {
			return nil, fmt.Errorf("field symbols %s and %s of %s both normalize to %q",
				prev.Symbol, fs, name, fieldName)
		}
		table[fieldName] = FieldDescriptor{
			Entity: name,
			Name:   fieldName,
			Symbol: fs,
			ID:     id,
			Type:   typ,
		}
	}

	c.cache.Add(name, table)
	c.logger.Debugw("discovered field table", "entity", name, "fields", len(table))
	return table, nil
}

// Fields returns every field descriptor of one entity type, sorted by
// name.
func (c *FieldCatalog) Fields(entity string) ([]FieldDescriptor, error) {
	table, err := c.table(entity)
	if err != nil {
		return nil, err
	}
	fields := make([]FieldDescriptor, 0, len(table))
	for _, fd := range table {
		fields = append(fields, fd)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields, nil
}

// Resolve maps a field name to its descriptor within one entity type.
// The name is normalized first, so both supplier_name and
// ADK_SUPPLIER_NAME resolve.
func (c *FieldCatalog) Resolve(entity, field string) (FieldDescriptor, error) {
	table, err := c.table(entity)
	if err != nil {
		return FieldDescriptor{}, err
	}
	fd, ok := table[NormalizeField(field)]
	if !ok {
		return FieldDescriptor{}, fmt.Errorf("%w: %s is not a valid field of %s", ErrUnknownField, field, entity)
	}
	return fd, nil
}

// TypeOf asks the driver for the live type tag of a field identifier on
// one record handle. An unused identifier means the field does not
// belong to the handle's entity.
func (c *FieldCatalog) TypeOf(h adk.DataHandle, id adk.FieldID) (adk.FieldType, error) {
	typ := c.driver.FieldType(h, id)
	if typ == adk.FieldTypeUnused {
		return typ, fmt.Errorf("%w: field %d is unused on this record", ErrUnknownField, id)
	}
	return typ, nil
}
