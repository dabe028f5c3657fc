// Package geo reads and checks the GeoJSON polygons sent to the region routes.
//
// A Geometry keeps the JSON it was parsed from so the region request carries
// exactly what the user supplied. The decoded rings are only used locally:
// Validate rejects open or degenerate rings before any request is made, and
// Contains, Centroid and AreaKm2 work on s2 loops so that ring orientation and
// the curvature of the Earth are handled without a projection.
//
// Shapefiles are not read. Export the field boundary to GeoJSON first; a
// FeatureCollection contributes the geometry of its first feature.
package geo
