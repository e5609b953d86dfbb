package comcat

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dyfi-induced-db/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 5*time.Second, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const eventsBody = `{
  "type": "FeatureCollection",
  "metadata": {"generated": 1500000000000, "count": 1},
  "features": [
    {
      "type": "Feature",
      "id": "us10001abc",
      "properties": {
        "mag": 4.5, "time": 1425988800500, "cdi": 5.2, "felt": 812,
        "net": "us", "title": "M 4.5 - Oklahoma", "type": "earthquake",
        "status": "reviewed", "updated": 1426000000000,
        "detail": "https://example.test/detail/us10001abc.geojson",
        "place": "10km N of Nowhere", "sig": 312
      },
      "geometry": {"type": "Point", "coordinates": [-97.51, 36.49, 5.0]}
    }
  ]
}`

func TestClient_Events_SplitsByYear(t *testing.T) {
	var mu sync.Mutex
	var windows [][2]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "geojson", q.Get("format"))
		assert.Equal(t, "dyfi", q.Get("producttype"))

		mu.Lock()
		windows = append(windows, [2]string{q.Get("starttime"), q.Get("endtime")})
		mu.Unlock()

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(eventsBody))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	start := time.Date(2015, time.June, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2016, time.March, 1, 0, 0, 0, 0, time.UTC)

	events, err := c.Events(context.Background(), start, end)
	require.NoError(t, err)

	assert.Len(t, events, 2, "one event per window")
	assert.Equal(t, [][2]string{
		{"2015-06-01T00:00:00", "2016-01-01T00:00:00"},
		{"2016-01-01T00:00:00", "2016-03-01T00:00:00"},
	}, windows)

	ev := events[0]
	assert.Equal(t, "us10001abc", ev.ID)
	require.NotNil(t, ev.Properties.Mag)
	assert.Equal(t, 4.5, *ev.Properties.Mag)
	require.NotNil(t, ev.Properties.Felt)
	assert.Equal(t, 812, *ev.Properties.Felt)
	assert.Equal(t, -97.51, ev.Lon())
	assert.Equal(t, 36.49, ev.Lat())
}

func TestClient_Events_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	events, err := c.Events(context.Background(),
		time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2015, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClient_Events_InvalidRange(t *testing.T) {
	c := testClient("http://127.0.0.1:0")
	at := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)

	_, err := c.Events(context.Background(), at, at)
	require.Error(t, err)
}

func TestClient_Events_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Bad Request: endtime must be after starttime"))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Events(context.Background(),
		time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2015, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "endtime must be after starttime")
}

func TestClient_Events_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"features": [`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Events(context.Background(),
		time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2015, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode events response")
}

const detailBody = `{
  "type": "Feature",
  "id": "us10001abc",
  "properties": {
    "net": "us",
    "code": "10001abc",
    "products": {
      "dyfi": [
        {
          "id": "urn:usgs-product:us:dyfi:us10001abc:1",
          "code": "us10001abc",
          "source": "us",
          "status": "UPDATE",
          "properties": {"maxmmi": "5.2", "numResp": "812"},
          "contents": {
            "dyfi_geo_1km.geojson": {"contentType": "application/json", "url": "%s/1km", "length": 10},
            "dyfi_geo_10km.geojson": {"contentType": "application/json", "url": "%s/10km", "length": 11}
          }
        }
      ]
    }
  }
}`

func TestClient_Detail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "us10001abc", q.Get("eventid"))
		assert.Equal(t, "false", q.Get("includesuperseded"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(detailBody))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	detail, err := c.Detail(context.Background(), "us10001abc")
	require.NoError(t, err)

	product, ok := detail.DYFI()
	require.True(t, ok)
	assert.Equal(t, "UPDATE", product.Status)
	assert.Equal(t, "812", product.Properties["numResp"])
	assert.Contains(t, product.Contents, "dyfi_geo_1km.geojson")
}

func TestClient_Detail_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Detail(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	data, err := c.Download(context.Background(), srv.URL+"/file.geojson")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))

	_, err = c.Download(context.Background(), srv.URL+"/gone")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.Detail(context.Background(), "us10001abc")
	require.Error(t, err)
}
