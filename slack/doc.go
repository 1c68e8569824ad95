// Package slack exports Slack channel history as JSON batch files.
//
// The ingestor authenticates with the OAuth2 refresh-token grant (Slack
// rotates refresh tokens, so the newest one is persisted in the state
// store), lists every conversation, pages through each channel's history
// and writes slack_messages_<n>.json files counting from one. Image and
// plain text attachments are embedded base64 encoded.
//
// Every Web API call is rate limited and retried with exponential backoff
// that honors Slack's Retry-After header. A call rejected with invalid_auth
// or token_expired refreshes the token once before giving up.
package slack
