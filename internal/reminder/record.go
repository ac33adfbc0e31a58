package reminder

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrBadFormat = errors.New("bad date format")
	ErrInPast    = errors.New("date is in the past")
)

const (
	// StoreLayout is how scheduled times are written to the table.
	StoreLayout = "2006-01-02 15:04:05"
	// RequestLayout is the format users type in /remind.
	RequestLayout = "2006/01/02 15:04"
)

const (
	colDatetime = iota + 1
	colMessage
	colChannel
	colSent
)

// Header is row 1 of a fresh reminder table.
var Header = []string{"datetime", "message", "channel_id", "is_sent"}

// cell layouts accepted when reading; hand-edited sheets often drop seconds.
var storeLayouts = []string{
	StoreLayout,
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	RequestLayout,
}

type Record struct {
	// Row is the 1-based sheet row; 0 for records not yet stored.
	Row         int
	ScheduledAt time.Time
	Message     string
	ChannelID   string
	Sent        bool

	// ParseErr is set when the datetime cell could not be read.
	ParseErr error
}

func (r Record) cells() []string {
	return []string{
		r.ScheduledAt.Format(StoreLayout),
		r.Message,
		r.ChannelID,
		flag(r.Sent),
	}
}

func flag(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func parseSent(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "TRUE")
}

func parseStoredTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty datetime", ErrBadFormat)
	}
	for _, layout := range storeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadFormat, s)
}

// ParseRequestTime parses user input in RequestLayout and rejects times before now.
func ParseRequestTime(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(RequestLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadFormat, raw)
	}
	if t.Before(now.Truncate(time.Second)) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInPast, t.Format(RequestLayout))
	}
	return t, nil
}
