// Package verify checks the batch files written by the ingestors.
package verify
