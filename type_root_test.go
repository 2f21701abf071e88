package odatatable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func propertyNames(props []*Property) []string {
	names := []string{}
	for _, p := range props {
		names = append(names, p.Name)
	}
	return names
}

func navigationNames(navs []*EntityType) []string {
	names := []string{}
	for _, n := range navs {
		names = append(names, n.Name)
	}
	return names
}

func TestBuildTypeRoot(t *testing.T) {
	root := demoProduct(t)

	assert.Equal(t, "Product", root.Name)
	assert.Equal(t, "ODataDemo.Product", root.Type)
	assert.Empty(t, root.Path)
	assert.Equal(t, []string{"ID"}, root.Keys)
	assert.Equal(t, []string{"ID", "Name", "Description", "ReleaseDate", "DiscontinuedDate", "Rating", "Price"}, propertyNames(root.Properties))
	require.Equal(t, []string{"Categories", "Supplier", "ProductDetail"}, navigationNames(root.NavigationProperties))

	categories := root.NavigationProperties[0]
	assert.True(t, categories.IsCollection)
	assert.Equal(t, []string{"Categories"}, categories.Path)
	assert.Empty(t, categories.NavigationProperties)
	assert.True(t, categories.Properties[0].IsCollection)
	assert.Equal(t, "Categories.Name", categories.Properties[1].PathName)

	supplier := root.NavigationProperties[1]
	assert.False(t, supplier.IsCollection)
	address := supplier.Properties[2]
	assert.Equal(t, "Address", address.Name)
	require.Len(t, address.Properties, 5)
	assert.Equal(t, []string{"Supplier", "Address", "City"}, address.Properties[1].Path)
	assert.Equal(t, "Supplier.Address.City", address.Properties[1].PathName)
}

func TestBuildTypeRootByEntitySet(t *testing.T) {
	root, err := BuildTypeRoot(demoMetadata(t), "Products", 0)
	require.NoError(t, err)
	assert.Equal(t, "ODataDemo.Product", root.Type)
	assert.Len(t, root.NavigationProperties, 3)
}

func TestBuildTypeRootDepth(t *testing.T) {
	root, err := BuildTypeRoot(demoMetadata(t), "ODataDemo.Supplier", 2)
	require.NoError(t, err)

	require.Equal(t, []string{"Products"}, navigationNames(root.NavigationProperties))
	products := root.NavigationProperties[0]
	assert.True(t, products.IsCollection)
	// Supplier is already on the path
	assert.Equal(t, []string{"Categories", "ProductDetail"}, navigationNames(products.NavigationProperties))
	assert.Equal(t, []string{"Products", "Categories"}, products.NavigationProperties[0].Path)
	assert.True(t, products.NavigationProperties[1].IsCollection)
}

func TestBuildTypeRootCycleGuard(t *testing.T) {
	root, err := BuildTypeRoot(demoMetadata(t), "ODataDemo.Product", 5)
	require.NoError(t, err)
	for _, nav := range root.NavigationProperties {
		for _, inner := range nav.NavigationProperties {
			assert.NotEqual(t, "ODataDemo.Product", inner.Type)
		}
	}
}

func TestBuildTypeRootInheritance(t *testing.T) {
	root, err := BuildTypeRoot(demoMetadata(t), "ODataDemo.FeaturedProduct", 1)
	require.NoError(t, err)
	assert.Len(t, root.Properties, 7)
	assert.Equal(t, []string{"Categories", "Supplier", "ProductDetail", "Advertisement"}, navigationNames(root.NavigationProperties))
}

func TestBuildTypeRootNotFound(t *testing.T) {
	_, err := BuildTypeRoot(demoMetadata(t), "ODataDemo.Nope", 1)
	assert.ErrorIs(t, err, ErrEntityTypeNotFound)

	_, err = BuildTypeRoot(nil, "ODataDemo.Product", 1)
	assert.ErrorIs(t, err, ErrEntityTypeNotFound)
}
