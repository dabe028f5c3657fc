// Package ui provides the terminal front-end of wcpms, built on Bubble Tea.
//
// # Views
//
//   - Query: the cube, point and region form plus the recent run history
//   - Point Chart: the annotated phenology chart of the last point query
//   - Region: the pixel centres over the region outline and the chart of
//     the selected pixel, with uncertainty bands around SOS and EOS
//   - Metrics: the metric documentation returned by /describe
//   - Collections: the data cubes returned by /list_collections; Enter
//     copies the selected name into the form
//   - Log: the tail of the log file, colored by level, with search
//
// # Requests
//
// Every request runs as one tea.Cmd calling state.Session. The session
// refuses a second request while one is in flight, and the UI checks the
// snapshot first so the refusal is reported without a round trip. The model
// polls the store once per second; results become visible through that
// snapshot, never through the command's return value.
//
// # Charts
//
// RenderChart and RenderRegion rasterise chart.Annotations and
// chart.RegionPlot onto a character canvas. The raw, smoothed and marker
// colors are the chart package's; guides and shading take theme colors so
// they stay visible on dark backgrounds. Both functions are also used by the
// command line to print charts.
//
// # Preferences
//
// The theme (cycled with T) and the form contents are saved to the prefs
// file whenever a query is submitted, a field loses focus or the theme
// changes.
package ui
