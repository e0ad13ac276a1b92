package models

import (
	"errors"
	"strings"
)

// TombstoneText replaces the body of an unsent message. A tombstoned
// message keeps its id and timestamp and never changes again.
const TombstoneText = "__deleted__"

// MessageTypePoll marks a message that carries a poll.
const MessageTypePoll = "poll"

const maxEmojiLength = 8

// Message is a single entry in a conversation log. Timestamp is the
// sorted-set score and must never change across in-place mutation.
type Message struct {
	ID        string              `json:"id"`
	SenderID  string              `json:"senderId"`
	Text      string              `json:"text"`
	Image     string              `json:"image,omitempty"`
	Timestamp int64               `json:"timestamp"`
	Reactions map[string][]string `json:"reactions,omitempty"`
	Type      string              `json:"type,omitempty"`
	Poll      *Poll               `json:"poll,omitempty"`
}

// Poll is the payload of a poll-typed message.
type Poll struct {
	Question           string       `json:"question"`
	Options            []PollOption `json:"options"`
	TotalVotes         int          `json:"totalVotes"`
	AllowMultipleVotes bool         `json:"allowMultipleVotes"`
	Anonymous          bool         `json:"anonymous"`
	ExpiresAt          int64        `json:"expiresAt,omitempty"`
}

// PollOption is one votable choice. Votes holds the ids of users who
// currently vote for it.
type PollOption struct {
	ID    string   `json:"id"`
	Text  string   `json:"text"`
	Votes []string `json:"votes"`
}

var (
	ErrEmptyMessage   = errors.New("message requires text or image")
	ErrTombstoneImage = errors.New("deleted message cannot carry an image")
)

// Validate checks the content rules: a message needs text or an image,
// and a tombstone must not carry an image.
func (m Message) Validate() error {
	hasText := strings.TrimSpace(m.Text) != ""
	if !hasText && m.Image == "" {
		return ErrEmptyMessage
	}
	if m.Text == TombstoneText && m.Image != "" {
		return ErrTombstoneImage
	}
	return nil
}

// IsTombstone reports whether the message has been unsent.
func (m Message) IsTombstone() bool {
	return m.Text == TombstoneText
}

// IsPoll reports whether the message carries a poll.
func (m Message) IsPoll() bool {
	return m.Type == MessageTypePoll && m.Poll != nil
}

// ValidEmoji applies a bounded-length sanity check. Abuse protection,
// not a grapheme validator.
func ValidEmoji(emoji string) bool {
	s := strings.TrimSpace(emoji)
	return s != "" && len([]rune(s)) <= maxEmojiLength
}

// RecomputeTotalVotes sets TotalVotes from the option vote sets.
func (p *Poll) RecomputeTotalVotes() {
	total := 0
	for _, opt := range p.Options {
		total += len(opt.Votes)
	}
	p.TotalVotes = total
}

// Expired reports whether voting has closed as of nowMillis.
func (p *Poll) Expired(nowMillis int64) bool {
	return p.ExpiresAt > 0 && nowMillis >= p.ExpiresAt
}
