package slack

import (
	"context"
	"errors"
	"fmt"
	"io"

	goslack "github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/poiesic/lmao/retry"
)

// Conversation is a channel the token can read.
type Conversation struct {
	ID   string
	Name string
}

// File is an attachment of a message.
type File struct {
	Name       string
	Filetype   string
	Mimetype   string
	URLPrivate string
}

// Message is one entry of a channel history.
type Message struct {
	User      string
	Text      string
	Timestamp string
	Files     []File
}

// HistoryPage is one page of a channel history.
type HistoryPage struct {
	Messages   []Message
	NextCursor string
}

// API is the subset of the Slack Web API the ingestor uses.
// Calls rejected for authentication reasons return ErrAuthExpired.
type API interface {
	// Conversations returns one page of conversations and the next cursor,
	// empty on the last page.
	Conversations(ctx context.Context, cursor string) ([]Conversation, string, error)

	// History returns one page of messages of a channel newer than oldest
	// (exclusive; empty for the whole history), newest first.
	History(ctx context.Context, channelID, cursor, oldest string) (HistoryPage, error)

	// Download writes the content of a private file URL to w.
	Download(ctx context.Context, url string, w io.Writer) error
}

// APIFactory creates an API bound to an access token.
type APIFactory func(accessToken string) API

// NewAPIFactory returns a factory of slack-go backed clients sharing one
// rate limiter. A nil limiter disables rate limiting.
func NewAPIFactory(limiter *rate.Limiter, options ...goslack.Option) APIFactory {
	return func(accessToken string) API {
		return &slackAPI{
			client:  goslack.New(accessToken, options...),
			limiter: limiter,
		}
	}
}

// slackAPI adapts a slack-go client to API.
type slackAPI struct {
	client  *goslack.Client
	limiter *rate.Limiter
}

const pageLimit = 200

func (s *slackAPI) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *slackAPI) Conversations(ctx context.Context, cursor string) ([]Conversation, string, error) {
	if err := s.wait(ctx); err != nil {
		return nil, "", err
	}
	channels, next, err := s.client.GetConversationsContext(ctx, &goslack.GetConversationsParameters{
		Cursor: cursor,
		Limit:  pageLimit,
	})
	if err != nil {
		return nil, "", translateError(err)
	}
	conversations := make([]Conversation, 0, len(channels))
	for _, c := range channels {
		conversations = append(conversations, Conversation{ID: c.ID, Name: c.Name})
	}
	return conversations, next, nil
}

func (s *slackAPI) History(ctx context.Context, channelID, cursor, oldest string) (HistoryPage, error) {
	if err := s.wait(ctx); err != nil {
		return HistoryPage{}, err
	}
	resp, err := s.client.GetConversationHistoryContext(ctx, &goslack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Cursor:    cursor,
		Oldest:    oldest,
		Limit:     pageLimit,
	})
	if err != nil {
		return HistoryPage{}, translateError(err)
	}

	page := HistoryPage{Messages: make([]Message, 0, len(resp.Messages))}
	if resp.HasMore {
		page.NextCursor = resp.ResponseMetaData.NextCursor
	}
	for _, m := range resp.Messages {
		msg := Message{User: m.User, Text: m.Text, Timestamp: m.Timestamp}
		for _, f := range m.Files {
			msg.Files = append(msg.Files, File{
				Name:       f.Name,
				Filetype:   f.Filetype,
				Mimetype:   f.Mimetype,
				URLPrivate: f.URLPrivate,
			})
		}
		page.Messages = append(page.Messages, msg)
	}
	return page, nil
}

func (s *slackAPI) Download(ctx context.Context, url string, w io.Writer) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if err := s.client.GetFileContext(ctx, url, w); err != nil {
		return translateError(err)
	}
	return nil
}

var authErrors = map[string]bool{
	"invalid_auth":  true,
	"token_expired": true,
	"not_authed":    true,
	"token_revoked": true,
}

// translateError maps slack-go errors to ErrAuthExpired and Retry-After hints.
func translateError(err error) error {
	var rateLimited *goslack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return &retry.AfterError{Err: err, Delay: rateLimited.RetryAfter}
	}
	var apiErr goslack.SlackErrorResponse
	if errors.As(err, &apiErr) && authErrors[apiErr.Err] {
		return fmt.Errorf("%w: %s", ErrAuthExpired, apiErr.Err)
	}
	return err
}
