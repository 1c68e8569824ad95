// Package batch writes ingested records to numbered, pretty-printed JSON files.
//
// Every ingestor funnels its records through a Writer, which guarantees that
// no file holds more than the configured number of records, optionally caps
// the tokens per file, and writes files atomically. A Manifest next to the
// files records which batches a run produced.
package batch
