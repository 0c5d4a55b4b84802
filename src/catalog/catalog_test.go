package catalog_test

import (
	"testing"

	"vismadk/src/adk"
	"vismadk/src/catalog"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCatalog(t *testing.T) (*adk.MemDriver, *catalog.FieldCatalog) {
	t.Helper()
	driver, err := adk.SampleDriver(zap.NewNop().Sugar(), "companies/test")
	require.NoError(t, err)
	cat, err := catalog.NewFieldCatalog(driver, zap.NewNop().Sugar())
	require.NoError(t, err)
	return driver, cat
}

func TestEntityDiscovery(t *testing.T) {
	require := require.New(t)
	_, cat := newTestCatalog(t)

	names, err := cat.Entities()
	require.NoError(err)
	require.Equal([]string{"invoice", "invoice_row", "supplier"}, names)

	symbol, err := cat.Symbol("supplier")
	require.NoError(err)
	require.Equal("ADK_DB_SUPPLIER", symbol)

	_, err = cat.Symbol("customer")
	require.ErrorIs(err, catalog.ErrUnknownEntity)
}

func TestFieldsOf(t *testing.T) {
	require := require.New(t)
	_, cat := newTestCatalog(t)

	fields, err := cat.Fields("supplier")
	require.NoError(err)
	require.Len(fields, 5)

	byName := map[string]catalog.FieldDescriptor{}
	for _, fd := range fields {
		byName[fd.Name] = fd
	}
	require.Equal(adk.FieldTypeText, byName["supplier_name"].Type)
	require.Equal(adk.FieldTypeNumber, byName["supplier_credit_limit"].Type)
	require.Equal(adk.FieldTypeBool, byName["supplier_active"].Type)
	require.Equal(adk.FieldTypeDate, byName["supplier_created"].Type)
}

func TestResolve(t *testing.T) {
	require := require.New(t)
	_, cat := newTestCatalog(t)

	t.Run("normalized name resolves", func(t *testing.T) {
		fd, err := cat.Resolve("supplier", "supplier_name")
		require.NoError(err)
		require.Equal("ADK_SUPPLIER_NAME", fd.Symbol)
		require.Equal(adk.FieldTypeText, fd.Type)
	})

	t.Run("raw symbol resolves too", func(t *testing.T) {
		fd, err := cat.Resolve("supplier", "ADK_SUPPLIER_NAME")
		require.NoError(err)
		require.Equal("supplier_name", fd.Name)
	})

	t.Run("unknown field fails, never defaults", func(t *testing.T) {
		_, err := cat.Resolve("supplier", "supplier_shoe_size")
		require.ErrorIs(err, catalog.ErrUnknownField)
	})

	t.Run("field of another entity does not leak in", func(t *testing.T) {
		_, err := cat.Resolve("supplier", "invoice_total")
		require.ErrorIs(err, catalog.ErrUnknownField)
	})
}

func TestTypeOf(t *testing.T) {
	require := require.New(t)
	driver, cat := newTestCatalog(t)

	h, st := driver.CreateData("ADK_DB_SUPPLIER")
	require.True(st.OK())
	defer driver.DeleteStruct(h)

	fd, err := cat.Resolve("supplier", "supplier_active")
	require.NoError(err)

	typ, err := cat.TypeOf(h, fd.ID)
	require.NoError(err)
	require.Equal(adk.FieldTypeBool, typ)

	t.Run("unused identifier reports unknown field", func(t *testing.T) {
		foreign, err := cat.Resolve("invoice", "invoice_total")
		require.NoError(err)
		_, err = cat.TypeOf(h, foreign.ID)
		require.ErrorIs(err, catalog.ErrUnknownField)
	})
}
