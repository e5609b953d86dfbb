package comcat

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

// EventDetail is the subset of a ComCat event detail document needed to
// locate DYFI product files.
type EventDetail struct {
	ID         string           `json:"id"`
	Properties DetailProperties `json:"properties"`
}

// DetailProperties lists the products attached to an event, keyed by
// product type.
type DetailProperties struct {
	Net      string               `json:"net"`
	Code     string               `json:"code"`
	Products map[string][]Product `json:"products"`
}

// Product is one version of a product attached to an event.
type Product struct {
	ID         string             `json:"id"`
	Code       string             `json:"code"`
	Source     string             `json:"source"`
	Status     string             `json:"status"`
	Properties map[string]string  `json:"properties"`
	Contents   map[string]Content `json:"contents"`
}

// Content is a downloadable file of a product.
type Content struct {
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
	Length      int64  `json:"length"`
}

// DYFI returns the preferred DYFI product, which ComCat lists first.
func (d *EventDetail) DYFI() (Product, bool) {
	products := d.Properties.Products["dyfi"]
	if len(products) == 0 {
		return Product{}, false
	}
	return products[0], true
}

// Detailer fetches event detail documents.
type Detailer interface {
	Detail(ctx context.Context, eventID string) (*EventDetail, error)
}

// Downloader fetches product content files.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// ErrNoDYFIProduct is returned when an event carries no DYFI product.
var ErrNoDYFIProduct = errors.New("event has no dyfi product")

// ProductFetcher resolves the aggregated DYFI files of an event.
type ProductFetcher struct {
	details   Detailer
	downloads Downloader
}

// NewProductFetcher creates a fetcher. Both roles are usually served by the
// same Client.
func NewProductFetcher(details Detailer, downloads Downloader) *ProductFetcher {
	return &ProductFetcher{details: details, downloads: downloads}
}

// DYFIProducts downloads the 1 km and 10 km aggregated geojson files of an
// event. Products the event does not carry are omitted; an event without any
// DYFI product yields ErrNoDYFIProduct.
func (f *ProductFetcher) DYFIProducts(ctx context.Context, eventID string) ([]domain.ProductFile, error) {
	detail, err := f.details.Detail(ctx, eventID)
	if err != nil {
		return nil, err
	}
	product, ok := detail.DYFI()
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNoDYFIProduct)
	}

	var files []domain.ProductFile
	for _, name := range domain.AggregatedProducts {
		content, ok := product.Contents[domain.ContentName(name)]
		if !ok || content.URL == "" {
			continue
		}
		data, err := f.downloads.Download(ctx, content.URL)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("download %s for %s: %w", name, eventID, err)
		}
		files = append(files, domain.ProductFile{EventID: eventID, Product: name, Data: data})
	}
	return files, nil
}
