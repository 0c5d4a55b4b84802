package entities

import (
	"vismadk/src/adk"
	"vismadk/src/catalog"
	"vismadk/src/query"
	"vismadk/src/records"

	"go.uber.org/zap"
)

// Service hands out entity accessors over one driver connection. It is
// data driven: any entity type the catalog can resolve gets an accessor,
// no per-type code involved.
type Service struct {
	driver  adk.Driver
	catalog *catalog.FieldCatalog
	cursor  *query.Cursor
	logger  *zap.SugaredLogger
}

func NewService(driver adk.Driver, cat *catalog.FieldCatalog, logger *zap.SugaredLogger) *Service {
	return &Service{
		driver:  driver,
		catalog: cat,
		cursor:  query.NewCursor(driver, cat, logger),
		logger:  logger,
	}
}

// Entity binds an accessor to one entity type. The name is validated
// against the catalog up front.
func (s *Service) Entity(name string) (*EntitySet, error) {
	if _, err := s.catalog.Symbol(name); err != nil {
		return nil, err
	}
	return &EntitySet{svc: s, entity: name}, nil
}

// EntitySet is the per-entity facade: lookups, filtered iteration and
// templates for new records.
type EntitySet struct {
	svc    *Service
	entity string
}

// Get returns the single first record matching the filter. The caller
// owns the record and must Release it.
func (e *EntitySet) Get(filter map[string]any) (*records.Record, error) {
	return e.svc.cursor.FindFirst(e.entity, filter)
}

// Filter returns a lazy result set of all matching records. See
// query.Rows for the single-cursor invalidation rule.
func (e *EntitySet) Filter(filter map[string]any) (*query.Rows, error) {
	return e.svc.cursor.FindAll(e.entity, filter)
}

// New returns an unsaved record template ready for field assignment and
// Create.
func (e *EntitySet) New() (*records.Record, error) {
	return records.New(e.svc.driver, e.svc.catalog, e.svc.logger, e.entity)
}
