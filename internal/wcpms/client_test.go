package wcpms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/five82/wcpms/internal/geo"
)

const pointResponse = `{"result": {
	"aos_v": 2975.66650390625,
	"bse_v": 6233.1669921875,
	"eos_t": "2021-07-13T00:00:00",
	"eos_v": 5489.0,
	"pos_t": "2021-04-01T00:00:00",
	"pos_v": 9000.0,
	"sos_t": "2021-01-02T00:00:00",
	"sos_v": 7649.0,
	"vos_t": "2021-12-20T00:00:00",
	"vos_v": 4817.33349609375
}}`

const fieldGeometry = `{"type":"Polygon","coordinates":[[[-56,-29.3],[-55.9,-29.3],[-55.9,-29.1],[-56,-29.1],[-56,-29.3]]]}`

func testCube(t *testing.T) CubeDescriptor {
	t.Helper()
	cube, err := NewCube("S2-16D-2", "NDVI", "2021-01-01", "2021-12-31", "16D")
	if err != nil {
		t.Fatalf("NewCube returned error: %v", err)
	}
	return cube
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(server.URL, opts...)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != DefaultBaseURL {
		t.Fatalf("default url = %q, want %q", u.String(), DefaultBaseURL)
	}

	u, err = parseBaseURL("localhost:5000")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" || u.Host != "localhost:5000" {
		t.Fatalf("url = %q, want http://localhost:5000", u.String())
	}

	u, err = parseBaseURL("https://example.com/bdc/wcpms/?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "/bdc/wcpms" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}

	if _, err := parseBaseURL("http://"); err == nil {
		t.Fatalf("parseBaseURL(http://) returned nil error")
	}
}

func TestClient_EndpointKeepsPathPrefix(t *testing.T) {
	c, err := NewClient("https://example.com/bdc/wcpms/")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if got := c.endpoint(RouteDescribe, nil); got != "https://example.com/bdc/wcpms/describe" {
		t.Fatalf("endpoint = %q", got)
	}
}

func TestClient_FetchPointPhenometrics(t *testing.T) {
	t.Parallel()

	var gotMethod string
	var gotQuery map[string][]string
	var gotBody []byte
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, pointResponse)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	res, err := c.FetchPointPhenometrics(ctx, testCube(t), -29.20, -55.95)
	if err != nil {
		t.Fatalf("FetchPointPhenometrics returned error: %v", err)
	}
	if gotMethod != http.MethodGet || gotPath != RoutePhenometrics {
		t.Fatalf("request = %s %s, want GET %s", gotMethod, gotPath, RoutePhenometrics)
	}
	if len(gotBody) != 0 {
		t.Fatalf("GET body = %q, want empty", gotBody)
	}

	keys := make([]string, 0, len(gotQuery))
	for k := range gotQuery {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{"band", "collection", "end_date", "freq", "latitude", "longitude", "start_date"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("query keys = %v, want exactly %v", keys, want)
	}
	expect := map[string]string{
		"collection": "S2-16D-2",
		"band":       "NDVI",
		"start_date": "2021-01-01",
		"end_date":   "2021-12-31",
		"freq":       "16D",
		"latitude":   "-29.2",
		"longitude":  "-55.95",
	}
	for k, v := range expect {
		if got := gotQuery[k]; len(got) != 1 || got[0] != v {
			t.Fatalf("query %s = %v, want [%s]", k, got, v)
		}
	}

	if res.Phenometrics.SOS.Value != 7649.0 {
		t.Fatalf("sos_v = %v, want 7649", res.Phenometrics.SOS.Value)
	}
	if want := time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC); !res.Phenometrics.SOS.Time.Equal(want) {
		t.Fatalf("sos_t = %v, want %v", res.Phenometrics.SOS.Time, want)
	}
	if !res.Phenometrics.AOS.HasValue || res.Phenometrics.AOS.HasTime {
		t.Fatalf("aos = %#v, want value only", res.Phenometrics.AOS)
	}
}

func TestClient_FetchPointPhenometricsNestedResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"result": {
			"phenometrics": {"sos_t": "2021-01-02T00:00:00", "sos_v": 7649.0},
			"timeseries": {"timeline": ["2021-01-01", "2021-01-17", "2021-02-02"], "values": [7000, null, 7649]}
		}}`)
	})
	res, err := c.FetchPointPhenometrics(context.Background(), testCube(t), -29.2, -55.95)
	if err != nil {
		t.Fatalf("FetchPointPhenometrics returned error: %v", err)
	}
	if res.Phenometrics.SOS.Value != 7649 {
		t.Fatalf("sos_v = %v, want 7649", res.Phenometrics.SOS.Value)
	}
	if res.Timeseries.Len() != 3 || len(res.Timeseries.Timeline) != 3 {
		t.Fatalf("timeseries len = %d, want 3", res.Timeseries.Len())
	}
	if v := res.Timeseries.Values[1]; v == v {
		t.Fatalf("null value decoded as %v, want NaN", v)
	}
}

func TestClient_FetchPointPhenometricsValidatesBeforeRequest(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	if _, err := c.FetchPointPhenometrics(context.Background(), CubeDescriptor{}, 0, 0); err == nil {
		t.Fatalf("FetchPointPhenometrics(empty cube) returned nil error")
	}
	if _, err := c.FetchPointPhenometrics(context.Background(), testCube(t), 91, 0); err == nil {
		t.Fatalf("FetchPointPhenometrics(lat=91) returned nil error")
	}
	if _, err := c.FetchPointPhenometrics(context.Background(), testCube(t), 0, -181); err == nil {
		t.Fatalf("FetchPointPhenometrics(lon=-181) returned nil error")
	}
	if called {
		t.Fatalf("server was called for invalid input")
	}
}

func TestClient_RegionRoundTrip(t *testing.T) {
	t.Parallel()

	var timeseriesBody, phenometricsBody map[string]json.RawMessage
	var contentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		switch r.URL.Path {
		case RouteTimeseries:
			_ = json.NewDecoder(r.Body).Decode(&timeseriesBody)
			_, _ = io.WriteString(w, `{"result": [
				{"point": [-55.95, -29.2], "timeseries": {"timeline": ["2021-01-01", "2021-01-17", "2021-02-02"], "values": [1, 2, 3]}, "extra": "kept"},
				{"point": [-55.94, -29.2], "timeline": ["2021-01-01", "2021-01-17", "2021-02-02"], "timeseries": [4, 5, 6]}
			]}`)
		case RoutePhenometrics:
			_ = json.NewDecoder(r.Body).Decode(&phenometricsBody)
			_, _ = io.WriteString(w, `{"result": [
				{"point": [-55.95, -29.2], "phenometrics": {"sos_t": "2021-01-02T00:00:00", "sos_v": 1}, "timeline": ["2021-01-01"], "timeseries": [1]},
				{"point": [-55.94, -29.2], "phenometrics": {"sos_t": "2021-01-17T00:00:00", "sos_v": 5}, "timeline": ["2021-01-01"], "timeseries": [4]}
			]}`)
		default:
			http.NotFound(w, r)
		}
	})

	geom, err := geo.Parse([]byte(fieldGeometry))
	if err != nil {
		t.Fatalf("geo.Parse: %v", err)
	}
	cube := testCube(t)

	series, err := c.FetchRegionTimeseries(context.Background(), cube, geom)
	if err != nil {
		t.Fatalf("FetchRegionTimeseries returned error: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", contentType)
	}
	if len(series) != 2 || series[0].Point == nil || series[0].Point.Lon != -55.95 {
		t.Fatalf("series = %#v, want 2 pixels", series)
	}
	if series[1].Series.Values[2] != 6 {
		t.Fatalf("flat series values = %v, want [4 5 6]", series[1].Series.Values)
	}
	for _, key := range []string{"collection", "band", "start_date", "end_date", "freq", "geom"} {
		if _, ok := timeseriesBody[key]; !ok {
			t.Fatalf("timeseries body missing %q: %v", key, timeseriesBody)
		}
	}
	if len(timeseriesBody) != 6 {
		t.Fatalf("timeseries body has %d keys, want 6", len(timeseriesBody))
	}
	if string(timeseriesBody["geom"]) != fieldGeometry {
		t.Fatalf("geom = %s, want %s", timeseriesBody["geom"], fieldGeometry)
	}

	results, err := c.FetchRegionPhenometrics(context.Background(), cube, series)
	if err != nil {
		t.Fatalf("FetchRegionPhenometrics returned error: %v", err)
	}
	if len(results) != 2 || results[1].Phenometrics.SOS.Value != 5 {
		t.Fatalf("results = %#v, want 2 with second sos_v=5", results)
	}
	if _, ok := phenometricsBody["timeseries"]; !ok {
		t.Fatalf("phenometrics body missing timeseries: %v", phenometricsBody)
	}
	if !strings.Contains(string(phenometricsBody["timeseries"]), `"extra":"kept"`) {
		t.Fatalf("timeseries not forwarded verbatim: %s", phenometricsBody["timeseries"])
	}
	if _, ok := phenometricsBody["geom"]; ok {
		t.Fatalf("phenometrics body should not carry geom")
	}
}

func TestClient_RegionValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	open := geo.NewPolygon(geo.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
	if _, err := c.FetchRegionTimeseries(context.Background(), testCube(t), open); err == nil {
		t.Fatalf("FetchRegionTimeseries(open ring) returned nil error")
	}
	if _, err := c.FetchRegionPhenometrics(context.Background(), testCube(t), nil); err == nil {
		t.Fatalf("FetchRegionPhenometrics(nil) returned nil error")
	}
}

func TestClient_ListCollectionsAndDescribe(t *testing.T) {
	t.Parallel()

	type seen struct {
		method string
		query  string
		body   int
		token  string
		agent  string
	}
	requests := map[string]seen{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests[r.URL.Path] = seen{r.Method, r.URL.RawQuery, len(body), r.Header.Get("x-api-key"), r.Header.Get("User-Agent")}
		switch r.URL.Path {
		case RouteListCollections:
			_, _ = io.WriteString(w, `{"coverages": ["S2-16D-2", "LANDSAT-16D-1"]}`)
		case RouteDescribe:
			_, _ = io.WriteString(w, `{"description": [
				{"Code": "SOS", "Name": "Start of Season", "Description": "Date of the start of the season", "Method": "TIMESAT", "Value": true, "Time": 1}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}, WithAccessToken(" secret "))

	collections, err := c.ListCollections(context.Background())
	if err != nil {
		t.Fatalf("ListCollections returned error: %v", err)
	}
	if len(collections) != 2 || collections[0] != "S2-16D-2" {
		t.Fatalf("collections = %v", collections)
	}

	desc, err := c.DescribeMetrics(context.Background())
	if err != nil {
		t.Fatalf("DescribeMetrics returned error: %v", err)
	}
	if len(desc) != 1 || desc[0].Code != "SOS" || desc[0].Value != "true" || desc[0].Time != "1" {
		t.Fatalf("description = %#v", desc)
	}

	for _, route := range []string{RouteListCollections, RouteDescribe} {
		s := requests[route]
		if s.method != http.MethodGet || s.query != "" || s.body != 0 {
			t.Fatalf("%s request = %#v, want GET with no query and no body", route, s)
		}
		if s.token != "secret" {
			t.Fatalf("%s token = %q, want secret", route, s.token)
		}
		if !strings.HasPrefix(s.agent, "wcpms-go/") {
			t.Fatalf("%s User-Agent = %q, want wcpms-go/*", route, s.agent)
		}
	}
}

func TestClient_NonSuccessStatusIsHTTPErrorOnEveryRoute(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>upstream down</html>")
	})
	geom, err := geo.Parse([]byte(fieldGeometry))
	if err != nil {
		t.Fatalf("geo.Parse: %v", err)
	}
	cube := testCube(t)
	series := []RegionSeries{{Series: TimeSeries{}}}

	calls := map[string]func() error{
		"point": func() error {
			_, err := c.FetchPointPhenometrics(context.Background(), cube, 0, 0)
			return err
		},
		"timeseries": func() error {
			_, err := c.FetchRegionTimeseries(context.Background(), cube, geom)
			return err
		},
		"region phenometrics": func() error {
			_, err := c.FetchRegionPhenometrics(context.Background(), cube, series)
			return err
		},
		"collections": func() error {
			_, err := c.ListCollections(context.Background())
			return err
		},
		"describe": func() error {
			_, err := c.DescribeMetrics(context.Background())
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("error = %v (%T), want *HTTPError", err, err)
			}
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				t.Fatalf("error = %v, must not be a DecodeError", err)
			}
			if httpErr.StatusCode != http.StatusBadGateway || !strings.Contains(httpErr.Body, "upstream down") {
				t.Fatalf("HTTPError = %#v", httpErr)
			}
			if !strings.Contains(err.Error(), "returned status 502") {
				t.Fatalf("error text = %q, want status 502", err.Error())
			}
		})
	}
}

func TestClient_DecodeErrors(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case RouteListCollections:
			_, _ = io.WriteString(w, "{not-json")
		case RouteDescribe:
			_, _ = io.WriteString(w, `{"result": []}`)
		case RoutePhenometrics:
			_, _ = io.WriteString(w, `{"result": {"phenometrics": {}, "timeline": ["2021-01-01"], "timeseries": [1, 2]}}`)
		}
	})

	_, err := c.ListCollections(context.Background())
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("ListCollections error = %v, want DecodeError", err)
	}

	_, err = c.DescribeMetrics(context.Background())
	if !errors.As(err, &decodeErr) || decodeErr.Field != "description" {
		t.Fatalf("DescribeMetrics error = %v, want missing description field", err)
	}

	_, err = c.FetchPointPhenometrics(context.Background(), testCube(t), 0, 0)
	if !errors.As(err, &decodeErr) {
		t.Fatalf("FetchPointPhenometrics error = %v, want DecodeError for mismatched series", err)
	}
}

func TestClient_UnreachableHostIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := NewClient(url)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = c.ListCollections(context.Background())
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v (%T), want *TransportError", err, err)
	}
	if transportErr.Route != RouteListCollections || transportErr.Unwrap() == nil {
		t.Fatalf("TransportError = %#v", transportErr)
	}
}

func TestClient_NilReceiver(t *testing.T) {
	var c *Client
	if _, err := c.ListCollections(context.Background()); err == nil {
		t.Fatalf("nil client returned nil error")
	}
	if c.BaseURL() != "" {
		t.Fatalf("nil client BaseURL should be empty")
	}
}
