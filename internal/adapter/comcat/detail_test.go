package comcat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

func TestProductFetcher_DYFIProducts(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/query", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = fmt.Fprintf(w, detailBody, srv.URL, srv.URL)
	})
	mux.HandleFunc("/1km", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("one-km"))
	})
	mux.HandleFunc("/10km", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ten-km"))
	})

	c := testClient(srv.URL + "/query")
	f := NewProductFetcher(c, c)

	files, err := f.DYFIProducts(context.Background(), "us10001abc")
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, domain.ProductFile{EventID: "us10001abc", Product: domain.ProductGeo1km, Data: []byte("one-km")}, files[0])
	assert.Equal(t, domain.ProductFile{EventID: "us10001abc", Product: domain.ProductGeo10km, Data: []byte("ten-km")}, files[1])
}

func TestProductFetcher_SkipsMissingContent(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/query", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = fmt.Fprintf(w, detailBody, srv.URL, srv.URL)
	})
	mux.HandleFunc("/1km", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("one-km"))
	})
	mux.HandleFunc("/10km", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	c := testClient(srv.URL + "/query")
	files, err := NewProductFetcher(c, c).DYFIProducts(context.Background(), "us10001abc")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, domain.ProductGeo1km, files[0].Product)
}

type stubDetailer struct {
	detail *EventDetail
	err    error
}

func (s *stubDetailer) Detail(_ context.Context, _ string) (*EventDetail, error) {
	return s.detail, s.err
}

type failingDownloader struct{}

func (failingDownloader) Download(_ context.Context, _ string) ([]byte, error) {
	return nil, fmt.Errorf("connection reset")
}

func TestProductFetcher_NoDYFIProduct(t *testing.T) {
	details := &stubDetailer{detail: &EventDetail{ID: "us1"}}
	_, err := NewProductFetcher(details, failingDownloader{}).DYFIProducts(context.Background(), "us1")
	require.ErrorIs(t, err, ErrNoDYFIProduct)
}

func TestProductFetcher_DownloadError(t *testing.T) {
	details := &stubDetailer{detail: &EventDetail{
		ID: "us1",
		Properties: DetailProperties{Products: map[string][]Product{
			"dyfi": {{Contents: map[string]Content{
				"dyfi_geo_1km.geojson": {URL: "http://example.test/1km"},
			}}},
		}},
	}}
	_, err := NewProductFetcher(details, failingDownloader{}).DYFIProducts(context.Background(), "us1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dyfi_geo_1km")
}

func TestProductFetcher_DetailError(t *testing.T) {
	details := &stubDetailer{err: ErrNotFound}
	_, err := NewProductFetcher(details, failingDownloader{}).DYFIProducts(context.Background(), "us1")
	require.ErrorIs(t, err, ErrNotFound)
}
