// Package sink persists raw feed payloads captured by a polling session.
//
// The session calls Persist once per tick when save mode is enabled;
// artifact keys embed city, feed type, iteration, and capture timestamp so
// archived payloads can be replayed or debugged later. FileSink is the
// default; MemorySink backs tests; SQLiteSink keeps a durable local
// archive in a single file.
package sink
