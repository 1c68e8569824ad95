// Package retry provides the bounded retry loops used by every ingestor.
//
// Two shapes are used in practice: a fixed sleep between a small number of
// attempts (file uploads and downloads), and exponential backoff clamped to
// a window (Slack Web API calls). Both honor context cancellation, server
// Retry-After hints passed as *AfterError, and Permanent errors.
package retry
