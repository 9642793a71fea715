package config

// builtinSystems maps the documented bikeshare systems to their GBFS
// auto-discovery endpoints.
var builtinSystems = map[string]string{
	"dc":       "https://gbfs.capitalbikeshare.com/gbfs/2.3/gbfs.json",
	"nyc":      "https://gbfs.lyft.com/gbfs/2.3/bkn/gbfs.json",
	"boston":   "https://gbfs.bluebikes.com/gbfs/gbfs.json",
	"chicago":  "https://gbfs.divvybikes.com/gbfs/2.3/gbfs.json",
	"sf":       "https://gbfs.baywheels.com/gbfs/2.3/gbfs.json",
	"portland": "https://gbfs.biketownpdx.com/gbfs/2.3/gbfs.json",
	"denver":   "https://gbfs.lyft.com/gbfs/2.3/den/gbfs.json",
	"columbus": "https://gbfs.lyft.com/gbfs/2.3/cmh/gbfs.json",
	"la":       "https://gbfs.bcycle.com/bcycle_lametro/gbfs.json",
	"phila":    "https://gbfs.bcycle.com/bcycle_indego/gbfs.json",
	"toronto":  "https://tor.publicbikesystem.net/customer/gbfs/v2/gbfs.json",
	"cdmx":     "https://gbfs.mex.lyftbikes.com/gbfs/gbfs.json",
}

var builtinSystemOrder = []string{
	"dc", "nyc", "boston", "chicago", "sf", "portland",
	"denver", "columbus", "la", "phila", "toronto", "cdmx",
}

// builtinMetadata holds the per-city metadata field tables. Which fields
// count as metadata is provider-dependent, so each documented city carries
// its own list; a feed absent from a city's map is not pollable for that
// city without a config entry.
var builtinMetadata = map[string]map[string][]string{
	"dc": {
		"station_status":   {"is_installed", "station_id", "is_returning", "is_renting"},
		"free_bike_status": {"vehicle_type_id", "rental_uris", "bike_id", "is_reserved", "is_disabled"},
	},
	"nyc": {
		"station_status": {"is_returning", "station_id", "is_renting", "is_installed"},
	},
	"boston": {
		"station_status": {"eightd_has_available_keys", "legacy_id", "is_renting", "is_returning", "is_installed", "station_id"},
	},
	"chicago": {
		"station_status":   {"station_id", "is_returning", "is_installed", "is_renting"},
		"free_bike_status": {"is_disabled", "rental_uris", "is_reserved", "bike_id", "vehicle_type_id"},
	},
	"sf": {
		"station_status":   {"is_renting", "is_returning", "is_installed", "station_id"},
		"free_bike_status": {"bike_id", "is_reserved", "vehicle_type_id", "rental_uris", "is_disabled"},
	},
	"portland": {
		"station_status":   {"is_returning", "station_id", "is_installed", "is_renting"},
		"free_bike_status": {"is_disabled", "rental_uris", "vehicle_type_id", "bike_id", "is_reserved"},
	},
	"denver": {
		"station_status":   {"is_installed", "station_id", "is_returning", "is_renting"},
		"free_bike_status": {"is_reserved", "bike_id", "vehicle_type_id", "is_disabled"},
	},
	"columbus": {
		"station_status":   {"is_renting", "is_returning", "station_id", "is_installed"},
		"free_bike_status": {"is_reserved", "is_disabled", "rental_uris", "vehicle_type_id", "bike_id"},
	},
	"la": {
		"station_status": {"is_returning", "is_renting", "is_installed", "station_id"},
	},
	"phila": {
		"station_status": {"is_returning", "is_renting", "is_installed", "station_id"},
	},
	"toronto": {
		"station_status": {"station_id", "is_charging_station", "status", "is_installed", "is_renting", "is_returning"},
	},
	"cdmx": {
		"station_status": {"is_installed", "station_id", "is_returning", "is_renting"},
	},
}

// defaultDataFields lists the GBFS 2.3 fields sampled every poll for each
// feed type. Fields a city's table claims as metadata win over these, so
// provider quirks (boston's legacy_id, toronto's is_charging_station) only
// need the metadata side spelled out.
var defaultDataFields = map[string][]string{
	"station_status": {
		"num_bikes_available", "num_bikes_disabled",
		"num_docks_available", "num_docks_disabled",
		"num_ebikes_available", "num_scooters_available",
		"last_reported", "vehicle_types_available", "vehicle_docks_available",
		"eightd_has_available_keys", "eightd_active_station_services",
		"legacy_id", "is_charging_station", "status",
	},
	"free_bike_status": {
		"lat", "lon", "current_range_meters", "current_fuel_percent",
		"last_reported", "station_id", "home_station_id",
		"pricing_plan_id", "battery_level",
	},
}
