// Package gbfs handles fetching and normalizing GBFS (General Bikeshare
// Feed Specification) JSON feeds.
//
// It supports the two status feed types this project polls:
//   - station_status: dock/bike counts and operational flags per station
//   - free_bike_status: per-vehicle location and availability
//
// The main types are Client, which performs one HTTP fetch of a feed
// endpoint, and RawSnapshot, the normalized per-entity field map for one
// fetch at one capture timestamp.
package gbfs
