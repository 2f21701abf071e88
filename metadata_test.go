package odatatable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSDL(t *testing.T) {
	md := demoMetadata(t)

	assert.Equal(t, "4.0", md.Version)
	require.Len(t, md.DataServices.Schemas, 1)
	schema := md.DataServices.Schemas[0]
	assert.Equal(t, "ODataDemo", schema.Namespace)
	assert.Len(t, schema.EntityTypes, 6)
	assert.Len(t, schema.ComplexTypes, 1)
	require.Len(t, schema.EntityContainers, 1)
	assert.Equal(t, "DemoService", schema.EntityContainers[0].Name)

	product, ok := md.FindEntityType("ODataDemo.Product")
	require.True(t, ok)
	assert.Equal(t, []PropertyRef{{Name: "ID"}}, product.Key)
	assert.Len(t, product.Properties, 7)
	assert.Equal(t, "Collection(ODataDemo.Category)", product.NavigationProperties[0].Type)
	assert.False(t, product.Properties[0].IsNullable())
	assert.True(t, product.Properties[1].IsNullable())
}

func TestParseCSDLInvalid(t *testing.T) {
	_, err := ParseCSDL([]byte("<Edmx><DataServices>"))
	assert.ErrorIs(t, err, ErrInvalidMetadata)

	_, err = ParseCSDL([]byte(`<Edmx xmlns="urn:other"></Edmx>`))
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestFindEntitySet(t *testing.T) {
	md := demoMetadata(t)

	set, ok := md.FindEntitySet("Suppliers")
	require.True(t, ok)
	assert.Equal(t, "ODataDemo.Supplier", set.EntityType)

	_, ok = md.FindEntitySet("Nope")
	assert.False(t, ok)
}

func TestEntityPropertiesIncludeBaseType(t *testing.T) {
	md := demoMetadata(t)
	featured, ok := md.FindEntityType("ODataDemo.FeaturedProduct")
	require.True(t, ok)

	props, navs := md.entityProperties(featured)
	require.Len(t, props, 7)
	assert.Equal(t, "ID", props[0].Name)
	require.Len(t, navs, 4)
	assert.Equal(t, "Advertisement", navs[3].Name)
	assert.Equal(t, []string{"ID"}, md.entityKeys(featured))
}

func TestQualifiedNameResolvesAlias(t *testing.T) {
	md := &Metadata{DataServices: DataServices{Schemas: []Schema{{
		Namespace:   "Very.Long.Namespace",
		Alias:       "NS",
		EntityTypes: []EntityTypeDef{{Name: "Thing"}},
	}}}}

	assert.Equal(t, "Very.Long.Namespace.Thing", md.QualifiedName("NS.Thing"))
	_, ok := md.FindEntityType("NS.Thing")
	assert.True(t, ok)
	assert.Equal(t, "Other.Thing", md.QualifiedName("Other.Thing"))
}
