// Package chart turns a phenology time series and its metrics into
// renderer-neutral chart annotations.
//
// Build smooths the series with a Savitzky-Golay filter and derives the
// season integral polygon (LIOS), the season length and amplitude guides
// (LOS, AOS) and the SOS/POS/EOS/VOS markers. The per-pixel variant adds
// uncertainty bands around SOS and EOS and drops the LOS guide. Everything here is a pure function of
// its inputs; drawing lives in the ui package.
package chart
