package domain

// Aggregated DYFI products downloaded per event: citizen responses binned on
// 1 km and 10 km geocoded grids.
const (
	ProductGeo1km  = "dyfi_geo_1km"
	ProductGeo10km = "dyfi_geo_10km"
)

// AggregatedProducts lists the products fetched for every event.
var AggregatedProducts = []string{ProductGeo1km, ProductGeo10km}

// ProductFile is one downloaded product document.
type ProductFile struct {
	EventID string
	Product string // ProductGeo1km or ProductGeo10km
	Data    []byte
}

// ContentName is the file name of the product inside the catalog's DYFI
// product contents.
func ContentName(product string) string {
	return product + ".geojson"
}
