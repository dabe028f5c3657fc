// Package config loads the wcpms TOML configuration.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/wcpms/config.toml
//  3. If the file doesn't exist, use defaults
//  4. Fields that are missing or blank keep their defaults
//
// # TOML Format
//
//	url = "https://data.inpe.br/bdc/wcpms"
//	access_token = ""
//	log_path = "~/.local/state/wcpms/wcpms.log"
//	metrics_addr = ""            # empty disables /metrics
//
//	[cube]
//	collection = "S2-16D-2"
//	band = "NDVI"
//	start_date = "2021-01-01"
//	end_date = "2021-12-31"
//	freq = "16D"
//
//	[chart]
//	smooth_window = 3
//	smooth_order = 1
//	advanced_window = 21
//	uncertainty_days = 16
//
// Tilde expansion applies to the config path and log_path. Load validates the
// default cube and the smoothing window so a bad file fails at startup rather
// than on the first query.
package config
