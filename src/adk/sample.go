package adk

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SampleDriver builds an embedded driver with a small supplier/invoice
// schema and one seeded company. The demo binary runs against it; tests
// use it as their fixture.
func SampleDriver(logger *zap.SugaredLogger, companyPath string) (*MemDriver, error) {
	d := NewMemDriver(logger)

	if err := d.SetCredentials("system", "sample"); err != nil {
		return nil, err
	}

	defs := []EntityDef{
		{
			Symbol: "ADK_DB_SUPPLIER",
			Fields: []FieldDef{
				{Symbol: "ADK_SUPPLIER_NUMBER", Type: FieldTypeText},
				{Symbol: "ADK_SUPPLIER_NAME", Type: FieldTypeText},
				{Symbol: "ADK_SUPPLIER_CREDIT_LIMIT", Type: FieldTypeNumber},
				{Symbol: "ADK_SUPPLIER_ACTIVE", Type: FieldTypeBool},
				{Symbol: "ADK_SUPPLIER_CREATED", Type: FieldTypeDate},
			},
		},
		{
			Symbol: "ADK_DB_INVOICE",
			Fields: []FieldDef{
				{Symbol: "ADK_INVOICE_NUMBER", Type: FieldTypeText},
				{Symbol: "ADK_INVOICE_STATUS", Type: FieldTypeText},
				{Symbol: "ADK_INVOICE_TOTAL", Type: FieldTypeNumber},
				{Symbol: "ADK_INVOICE_DUE_DATE", Type: FieldTypeDate},
				{Symbol: "ADK_INVOICE_NROWS", Type: FieldTypeNumber},
				{Symbol: "ADK_INVOICE_ROWBLOCK", Type: FieldTypeNumber},
			},
			RowEntity:     "ADK_DB_INVOICE_ROW",
			RowCountField: "ADK_INVOICE_NROWS",
			RowBlockField: "ADK_INVOICE_ROWBLOCK",
		},
		{
			Symbol: "ADK_DB_INVOICE_ROW",
			Fields: []FieldDef{
				{Symbol: "ADK_INVOICE_ROW_TEXT", Type: FieldTypeText},
				{Symbol: "ADK_INVOICE_ROW_QUANTITY", Type: FieldTypeNumber},
				{Symbol: "ADK_INVOICE_ROW_PRICE", Type: FieldTypeNumber},
			},
		},
	}
	for _, def := range defs {
		if err := d.DefineEntity(def); err != nil {
			return nil, fmt.Errorf("failed to define sample schema: %w", err)
		}
	}

	d.AddCompany(companyPath)

	seeds := []struct {
		entity string
		values map[string]any
		rows   []map[string]any
	}{
		{
			entity: "ADK_DB_SUPPLIER",
			values: map[string]any{
				"ADK_SUPPLIER_NUMBER":       "100",
				"ADK_SUPPLIER_NAME":         "Northwind Traders",
				"ADK_SUPPLIER_CREDIT_LIMIT": 25000.0,
				"ADK_SUPPLIER_ACTIVE":       true,
				"ADK_SUPPLIER_CREATED":      time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			entity: "ADK_DB_INVOICE",
			values: map[string]any{
				"ADK_INVOICE_NUMBER": "2024-001",
				"ADK_INVOICE_STATUS": "open",
				"ADK_INVOICE_TOTAL":  1250.50,
			},
			rows: []map[string]any{
				{"ADK_INVOICE_ROW_TEXT": "consulting", "ADK_INVOICE_ROW_QUANTITY": 10.0, "ADK_INVOICE_ROW_PRICE": 125.05},
			},
		},
	}
	for _, s := range seeds {
		if err := d.Seed(companyPath, s.entity, s.values, s.rows); err != nil {
			return nil, fmt.Errorf("failed to seed sample data: %w", err)
		}
	}

	return d, nil
}
