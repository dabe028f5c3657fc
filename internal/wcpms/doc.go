// Package wcpms provides an HTTP client for the Web Crop Phenology Metrics
// Service (WCPMS).
//
// # Overview
//
// WCPMS computes land-surface phenology metrics (start, peak and end of
// season, season length, amplitude and related integrals) from satellite
// vegetation-index time series stored in Brazil Data Cube collections. This
// package wraps the five service routes in typed calls and turns the loosely
// shaped JSON responses into Go values.
//
// # Client Usage
//
//	client, err := wcpms.NewClient(wcpms.DefaultBaseURL,
//		wcpms.WithAccessToken(token),
//		wcpms.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//
//	cube, err := wcpms.NewCube("S2-16D-2", "NDVI", "2021-01-01", "2021-12-31", "16D")
//	if err != nil {
//		return err
//	}
//
//	res, err := client.FetchPointPhenometrics(ctx, cube, -29.20, -55.95)
//
// # API Endpoints
//
//   - GET /phenometrics: metrics and series for one location. The query
//     carries exactly collection, band, start_date, end_date, freq,
//     latitude and longitude. Payload under "result".
//   - POST /timeseries: series for every pixel centre inside a GeoJSON
//     geometry. Body is the cube plus "geom". Payload under "result".
//   - POST /phenometrics: metrics for series returned by /timeseries. Body is
//     the cube plus "timeseries", forwarded byte for byte. Payload under
//     "result".
//   - GET /list_collections: collection names under "coverages".
//   - GET /describe: metric documentation under "description".
//
// # Request Handling
//
// Every call issues exactly one request. Nothing is retried and the client
// sets no timeout of its own; cancellation and deadlines come from the
// context. An access token, when configured, travels in the x-api-key header
// so query strings stay exactly as the service documents them.
//
// # Error Handling
//
// Failures fall into three types, distinguishable with errors.As:
//
//   - *TransportError: no HTTP response was received
//   - *HTTPError: the service answered with a non-2xx status; the status is
//     checked before any decoding, so an HTML error page is never reported
//     as a decode failure
//   - *DecodeError: the body is not JSON, lacks the envelope field, or does
//     not match the expected shape
//
// Invalid input (an incomplete cube, an out-of-range location, an open
// polygon) is rejected before any request is made.
//
// # Response Shapes
//
// Point results arrive either nested ({"phenometrics": {...}, "timeseries":
// {...}}) or flat, where the result object is the metric map itself. Metric
// maps use <code>_t for dates and <code>_v for values; both may be null.
// Series values may be null and decode as NaN.
//
// # Metrics
//
// WithMetrics attaches Prometheus counters and latency histograms labelled by
// route, method and outcome.
package wcpms
