package wcpms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05"
)

// CubeDescriptor names the data product, band and period to query.
type CubeDescriptor struct {
	Collection string
	Band       string
	StartDate  time.Time
	EndDate    time.Time
	Freq       string
}

// NewCube parses and validates a cube descriptor. Dates use YYYY-MM-DD.
func NewCube(collection, band, startDate, endDate, freq string) (CubeDescriptor, error) {
	start, err := parseDate(startDate)
	if err != nil {
		return CubeDescriptor{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := parseDate(endDate)
	if err != nil {
		return CubeDescriptor{}, fmt.Errorf("end_date: %w", err)
	}
	cube := CubeDescriptor{
		Collection: strings.TrimSpace(collection),
		Band:       strings.TrimSpace(band),
		StartDate:  start,
		EndDate:    end,
		Freq:       strings.TrimSpace(freq),
	}
	if err := cube.Validate(); err != nil {
		return CubeDescriptor{}, err
	}
	return cube, nil
}

// Validate checks that every field is set and the period is ordered.
func (c CubeDescriptor) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Collection) == "" {
		missing = append(missing, "collection")
	}
	if strings.TrimSpace(c.Band) == "" {
		missing = append(missing, "band")
	}
	if c.StartDate.IsZero() {
		missing = append(missing, "start_date")
	}
	if c.EndDate.IsZero() {
		missing = append(missing, "end_date")
	}
	if strings.TrimSpace(c.Freq) == "" {
		missing = append(missing, "freq")
	}
	if len(missing) > 0 {
		return fmt.Errorf("cube is missing %s", strings.Join(missing, ", "))
	}
	if c.StartDate.After(c.EndDate) {
		return fmt.Errorf("cube start_date %s is after end_date %s",
			c.StartDate.Format(dateLayout), c.EndDate.Format(dateLayout))
	}
	return nil
}

// String renders the cube for logs and headers.
func (c CubeDescriptor) String() string {
	return fmt.Sprintf("%s/%s %s..%s (%s)", c.Collection, c.Band,
		c.StartDate.Format(dateLayout), c.EndDate.Format(dateLayout), c.Freq)
}

func (c CubeDescriptor) values() url.Values {
	values := url.Values{}
	values.Set("collection", c.Collection)
	values.Set("band", c.Band)
	values.Set("start_date", c.StartDate.Format(dateLayout))
	values.Set("end_date", c.EndDate.Format(dateLayout))
	values.Set("freq", c.Freq)
	return values
}

// cubeBody is the cube part of every POST body.
type cubeBody struct {
	Collection string `json:"collection"`
	Band       string `json:"band"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Freq       string `json:"freq"`
}

func (c CubeDescriptor) body() cubeBody {
	return cubeBody{
		Collection: c.Collection,
		Band:       c.Band,
		StartDate:  c.StartDate.Format(dateLayout),
		EndDate:    c.EndDate.Format(dateLayout),
		Freq:       c.Freq,
	}
}

// Point is a pixel centre. The service encodes it as [lon, lat].
type Point struct {
	Lon float64
	Lat float64
}

// MarshalJSON implements json.Marshaler.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lon, p.Lat})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if len(pair) < 2 {
		return fmt.Errorf("point has %d coordinates, want 2", len(pair))
	}
	p.Lon, p.Lat = pair[0], pair[1]
	return nil
}

// Metric codes reported by the service.
const (
	CodeSOS  = "sos"
	CodePOS  = "pos"
	CodeEOS  = "eos"
	CodeVOS  = "vos"
	CodeLOS  = "los"
	CodeAOS  = "aos"
	CodeBSE  = "bse"
	CodeROI  = "roi"
	CodeROD  = "rod"
	CodeLIOS = "lios"
	CodeSIOS = "sios"
	CodeLIOT = "liot"
	CodeSIOT = "siot"
)

// KnownCodes lists the typed metrics in display order.
var KnownCodes = []string{
	CodeSOS, CodePOS, CodeEOS, CodeVOS, CodeLOS, CodeAOS, CodeBSE,
	CodeROI, CodeROD, CodeLIOS, CodeSIOS, CodeLIOT, CodeSIOT,
}

// Metric is one phenological metric: a value and, for dated metrics, a time.
type Metric struct {
	Value    float64
	Time     time.Time
	HasValue bool
	HasTime  bool
}

// Dated reports whether both the time and the value are present.
func (m Metric) Dated() bool {
	return m.HasValue && m.HasTime
}

// PhenometricsRecord holds the metrics computed for one location.
type PhenometricsRecord struct {
	SOS  Metric
	POS  Metric
	EOS  Metric
	VOS  Metric
	LOS  Metric
	AOS  Metric
	BSE  Metric
	ROI  Metric
	ROD  Metric
	LIOS Metric
	SIOS Metric
	LIOT Metric
	SIOT Metric

	// Other keeps metrics with codes this client does not know.
	Other map[string]Metric
}

func (r *PhenometricsRecord) field(code string) *Metric {
	switch code {
	case CodeSOS:
		return &r.SOS
	case CodePOS:
		return &r.POS
	case CodeEOS:
		return &r.EOS
	case CodeVOS:
		return &r.VOS
	case CodeLOS:
		return &r.LOS
	case CodeAOS:
		return &r.AOS
	case CodeBSE:
		return &r.BSE
	case CodeROI:
		return &r.ROI
	case CodeROD:
		return &r.ROD
	case CodeLIOS:
		return &r.LIOS
	case CodeSIOS:
		return &r.SIOS
	case CodeLIOT:
		return &r.LIOT
	case CodeSIOT:
		return &r.SIOT
	}
	return nil
}

// Get returns the metric for a code and whether it carries any data.
func (r PhenometricsRecord) Get(code string) (Metric, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if f := r.field(code); f != nil {
		return *f, f.HasValue || f.HasTime
	}
	m, ok := r.Other[code]
	return m, ok
}

// Set stores a metric under code.
func (r *PhenometricsRecord) Set(code string, m Metric) {
	code = strings.ToLower(strings.TrimSpace(code))
	if f := r.field(code); f != nil {
		*f = m
		return
	}
	if r.Other == nil {
		r.Other = make(map[string]Metric)
	}
	r.Other[code] = m
}

// Codes lists the codes present in the record, known codes first.
func (r PhenometricsRecord) Codes() []string {
	var codes []string
	for _, code := range KnownCodes {
		if _, ok := r.Get(code); ok {
			codes = append(codes, code)
		}
	}
	extra := make([]string, 0, len(r.Other))
	for code := range r.Other {
		extra = append(extra, code)
	}
	sort.Strings(extra)
	return append(codes, extra...)
}

// Require fails when any of the codes has no value.
func (r PhenometricsRecord) Require(codes ...string) error {
	var missing []string
	for _, code := range codes {
		if m, _ := r.Get(code); !m.HasValue {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("phenometrics missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequireDated fails when any of the codes lacks a value or a time.
func (r PhenometricsRecord) RequireDated(codes ...string) error {
	var missing []string
	for _, code := range codes {
		if m, _ := r.Get(code); !m.Dated() {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("phenometrics missing dated %s", strings.Join(missing, ", "))
	}
	return nil
}

// UnmarshalJSON decodes the flat <code>_t / <code>_v wire shape.
func (r *PhenometricsRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = PhenometricsRecord{}
	for key, val := range raw {
		idx := strings.LastIndexByte(key, '_')
		if idx <= 0 || idx == len(key)-1 {
			continue
		}
		code := strings.ToLower(key[:idx])
		m, _ := r.Get(code)
		switch key[idx+1:] {
		case "t":
			t, ok, err := decodeTime(val)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			m.Time, m.HasTime = t, ok
		case "v":
			v, ok, err := decodeValue(val)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			m.Value, m.HasValue = v, ok
		default:
			continue
		}
		if m.HasTime || m.HasValue {
			r.Set(code, m)
		}
	}
	return nil
}

// MarshalJSON encodes the record in the flat wire shape.
func (r PhenometricsRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	for _, code := range r.Codes() {
		m, _ := r.Get(code)
		if m.HasTime {
			out[code+"_t"] = m.Time.Format(timestampLayout)
		}
		if m.HasValue && !math.IsNaN(m.Value) {
			out[code+"_v"] = m.Value
		}
	}
	return json.Marshal(out)
}

// TimeSeries is an ordered series of observations.
type TimeSeries struct {
	Timeline []time.Time
	Values   []float64
}

// Len returns the number of observations.
func (ts TimeSeries) Len() int {
	return len(ts.Values)
}

// Validate checks that timeline and values line up.
func (ts TimeSeries) Validate() error {
	if len(ts.Timeline) != len(ts.Values) {
		return fmt.Errorf("timeline has %d entries but values has %d", len(ts.Timeline), len(ts.Values))
	}
	return nil
}

type seriesWire struct {
	Timeline []string   `json:"timeline"`
	Values   []*float64 `json:"values"`
}

// UnmarshalJSON implements json.Unmarshaler. Null values decode as NaN.
func (ts *TimeSeries) UnmarshalJSON(data []byte) error {
	var wire seriesWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	series, err := buildSeries(wire.Timeline, wire.Values)
	if err != nil {
		return err
	}
	*ts = series
	return nil
}

// MarshalJSON implements json.Marshaler. NaN values encode as null.
func (ts TimeSeries) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.wire())
}

func (ts TimeSeries) wire() seriesWire {
	wire := seriesWire{
		Timeline: make([]string, len(ts.Timeline)),
		Values:   make([]*float64, len(ts.Values)),
	}
	for i, t := range ts.Timeline {
		wire.Timeline[i] = t.Format(dateLayout)
	}
	for i, v := range ts.Values {
		if math.IsNaN(v) {
			continue
		}
		wire.Values[i] = &v
	}
	return wire
}

func buildSeries(timeline []string, values []*float64) (TimeSeries, error) {
	ts := TimeSeries{
		Timeline: make([]time.Time, 0, len(timeline)),
		Values:   make([]float64, 0, len(values)),
	}
	for i, s := range timeline {
		t, err := parseTime(s)
		if err != nil {
			return TimeSeries{}, fmt.Errorf("timeline[%d]: %w", i, err)
		}
		ts.Timeline = append(ts.Timeline, t)
	}
	for _, v := range values {
		if v == nil {
			ts.Values = append(ts.Values, math.NaN())
			continue
		}
		ts.Values = append(ts.Values, *v)
	}
	if err := ts.Validate(); err != nil {
		return TimeSeries{}, err
	}
	return ts, nil
}

// seriesFields is the union of the layouts the service uses for a series
// attached to a pixel: a nested {"timeline","values"} object under
// "timeseries", a bare values array under "timeseries" next to a top-level
// "timeline", or top-level "timeline" and "values".
type seriesFields struct {
	Point      *Point          `json:"point"`
	Timeline   []string        `json:"timeline"`
	Values     []*float64      `json:"values"`
	Timeseries json.RawMessage `json:"timeseries"`
}

func (f seriesFields) series() (TimeSeries, error) {
	nested := bytes.TrimSpace(f.Timeseries)
	switch {
	case len(nested) == 0 || bytes.Equal(nested, []byte("null")):
		return buildSeries(f.Timeline, f.Values)
	case nested[0] == '{':
		var ts TimeSeries
		if err := json.Unmarshal(nested, &ts); err != nil {
			return TimeSeries{}, fmt.Errorf("timeseries: %w", err)
		}
		return ts, nil
	case nested[0] == '[':
		var values []*float64
		if err := json.Unmarshal(nested, &values); err != nil {
			return TimeSeries{}, fmt.Errorf("timeseries: %w", err)
		}
		return buildSeries(f.Timeline, values)
	default:
		return TimeSeries{}, errors.New("timeseries is neither an object nor an array")
	}
}

// RegionSeries is the time series of one pixel inside a region.
type RegionSeries struct {
	Point  *Point
	Series TimeSeries

	raw json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler and keeps the original bytes.
func (rs *RegionSeries) UnmarshalJSON(data []byte) error {
	var fields seriesFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	series, err := fields.series()
	if err != nil {
		return err
	}
	*rs = RegionSeries{
		Point:  fields.Point,
		Series: series,
		raw:    append(json.RawMessage(nil), data...),
	}
	return nil
}

// MarshalJSON returns the bytes received from the service when available so
// the region phenometrics request forwards them unchanged.
func (rs RegionSeries) MarshalJSON() ([]byte, error) {
	if len(rs.raw) > 0 {
		return rs.raw, nil
	}
	wire := rs.Series.wire()
	return json.Marshal(struct {
		Point    *Point     `json:"point,omitempty"`
		Timeline []string   `json:"timeline"`
		Values   []*float64 `json:"values"`
	}{rs.Point, wire.Timeline, wire.Values})
}

// PhenometricsResult is one entry of a /phenometrics response.
type PhenometricsResult struct {
	Point        *Point
	Phenometrics PhenometricsRecord
	Timeseries   TimeSeries
}

// UnmarshalJSON accepts the nested {"phenometrics", "timeseries"} shape and
// the flat shape where the object is the metric map itself.
func (pr *PhenometricsResult) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	nested, ok := probe["phenometrics"]
	if !ok {
		var rec PhenometricsRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("phenometrics: %w", err)
		}
		var fields struct {
			Point *Point `json:"point"`
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		*pr = PhenometricsResult{Point: fields.Point, Phenometrics: rec}
		return nil
	}

	var rec PhenometricsRecord
	if err := json.Unmarshal(nested, &rec); err != nil {
		return fmt.Errorf("phenometrics: %w", err)
	}
	var fields seriesFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	series, err := fields.series()
	if err != nil {
		return err
	}
	*pr = PhenometricsResult{Point: fields.Point, Phenometrics: rec, Timeseries: series}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (pr PhenometricsResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Point        *Point             `json:"point,omitempty"`
		Phenometrics PhenometricsRecord `json:"phenometrics"`
		Timeseries   TimeSeries         `json:"timeseries"`
	}{pr.Point, pr.Phenometrics, pr.Timeseries})
}

// MetricDescription documents one metric as listed by /describe.
type MetricDescription struct {
	Code        string     `json:"Code"`
	Name        string     `json:"Name"`
	Description string     `json:"Description"`
	Method      string     `json:"Method"`
	Value       FlexString `json:"Value"`
	Time        FlexString `json:"Time"`
}

// FlexString decodes any JSON scalar into its text form.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var scalar any
	if err := json.Unmarshal(trimmed, &scalar); err != nil {
		return err
	}
	switch v := scalar.(type) {
	case bool:
		*f = FlexString(strconv.FormatBool(v))
	case float64:
		*f = FlexString(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		*f = FlexString(string(trimmed))
	}
	return nil
}

func decodeValue(raw json.RawMessage) (float64, bool, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return 0, false, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func decodeTime(raw json.RawMessage) (time.Time, bool, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return time.Time{}, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false, err
	}
	if strings.TrimSpace(s) == "" {
		return time.Time{}, false, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func parseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New("date is empty")
	}
	t, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD", value)
	}
	return t, nil
}

func parseTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05", dateLayout} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
