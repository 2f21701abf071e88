package odatatable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPaging(t *testing.T) {
	assert.Equal(t, "?$top=10", BuildPaging(PaginationState{PageIndex: 0, PageSize: 10}).String())
	assert.Equal(t, "?$top=25&$skip=50", BuildPaging(PaginationState{PageIndex: 2, PageSize: 25}).String())
}

func TestBuildSort(t *testing.T) {
	opts := BuildSort([]ColumnSort{{ID: "Name"}, {ID: "Supplier.Address.City", Desc: true}})
	assert.Equal(t, []string{"Name asc", "Supplier/Address/City desc"}, opts.OrderBy)
	assert.Equal(t, "", BuildSort(nil).String())
}

func TestBuildHidden(t *testing.T) {
	hidden := BuildHidden(VisibilityState{"Price": false, "Name": true, "Description": false})
	assert.Equal(t, []string{"Description", "Price"}, hidden)
	assert.Empty(t, BuildHidden(nil))
}

func TestBuildSelect(t *testing.T) {
	root := demoProduct(t)

	assert.Equal(t, []string{"ID", "Name", "Description", "ReleaseDate", "DiscontinuedDate", "Rating", "Price"},
		BuildSelect(nil, root).Select)
	assert.Equal(t, []string{"ID", "Name", "ReleaseDate", "Rating"},
		BuildSelect([]string{"Description", "DiscontinuedDate", "Price", "Supplier.Name"}, root).Select)
	assert.Empty(t, BuildSelect(nil, nil).Select)
}

func TestBuildExpand(t *testing.T) {
	root := demoProduct(t)

	assert.Equal(t, "Categories,Supplier,ProductDetail", FormatExpand(BuildExpand(nil, root).Expand))

	hidden := []string{"Categories.ID", "Categories.Name", "Supplier.Name", "Supplier.Location"}
	assert.Equal(t, "Supplier($select=ID,Address,Concurrency),ProductDetail",
		FormatExpand(BuildExpand(hidden, root).Expand))
}

func TestBuildExpandComplexVisibility(t *testing.T) {
	root := demoProduct(t)

	// a hidden complex column stays selected while one of its members is shown
	hidden := []string{"Supplier.Address", "Supplier.Address.Street", "Supplier.Address.City"}
	assert.Equal(t, "Categories,Supplier,ProductDetail", FormatExpand(BuildExpand(hidden, root).Expand))

	hidden = append(hidden, "Supplier.Address.State", "Supplier.Address.ZipCode", "Supplier.Address.Country")
	assert.Equal(t, "Categories,Supplier($select=ID,Name,Location,Concurrency),ProductDetail",
		FormatExpand(BuildExpand(hidden, root).Expand))
}

func TestBuildExpandNested(t *testing.T) {
	root, err := BuildTypeRoot(demoMetadata(t), "ODataDemo.Supplier", 2)
	assert.NoError(t, err)

	assert.Equal(t, "Products($expand=Categories,ProductDetail)", FormatExpand(BuildExpand(nil, root).Expand))

	// every Products column hidden, but Categories still shown
	hidden := []string{"Products.ID", "Products.Name", "Products.Description", "Products.ReleaseDate",
		"Products.DiscontinuedDate", "Products.Rating", "Products.Price",
		"Products.ProductDetail.ProductID", "Products.ProductDetail.Details", "Products.Categories.ID"}
	assert.Equal(t, "Products($expand=Categories($select=Name))", FormatExpand(BuildExpand(hidden, root).Expand))
}

func TestBuildSearch(t *testing.T) {
	assert.Equal(t, "?$search=bread", BuildSearch("  bread ").String())
	assert.Equal(t, "", BuildSearch(" ").String())
}
