// Package scrape fetches Cloudbeds calendar and bookings pages for a
// property. Every call takes an explicit Session; nothing is cached at
// package level.
package scrape

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// ErrSessionExpired is returned when Cloudbeds answers with its login page.
var ErrSessionExpired = errors.New("cloudbeds session expired")

// DefaultUserAgent is sent when the credentials do not name one.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64)"

// Credentials identify the account and property to scrape.
type Credentials struct {
	BaseURL    string
	PropertyID string
	Cookie     string // raw Cookie header of a logged-in browser session
	UserAgent  string
}

// Validate checks that the credentials can build requests.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.NewInvalidRequestError("scrape base url is empty")
	}
	if strings.TrimSpace(c.PropertyID) == "" {
		return errors.NewInvalidRequestError("scrape property id is empty")
	}
	return nil
}

// NewSession starts a session for one job execution.
func (c Credentials) NewSession() (*Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Session{
		ID:         uuid.NewString(),
		BaseURL:    strings.TrimRight(c.BaseURL, "/"),
		PropertyID: c.PropertyID,
		Cookie:     c.Cookie,
		UserAgent:  ua,
		StartedAt:  time.Now(),
	}, nil
}

// Session is the state of one scrape, threaded through every request.
type Session struct {
	ID         string
	BaseURL    string
	PropertyID string
	Cookie     string
	UserAgent  string
	StartedAt  time.Time

	Requests int
}
