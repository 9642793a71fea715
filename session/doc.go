// Package session drives the polling loop that turns a feed endpoint into
// an accumulated time series.
//
// A Session owns the tick cadence for one city: fetch, classify against
// the previous payload, ingest into the feed's store, optionally persist
// the raw payload. Individual tick failures are recorded in the session
// error log and never abort the run; only misconfiguration does.
//
// Manager holds the system registry and runs a queue of session
// configurations, each with its own cancellation, against independent
// stores.
package session
