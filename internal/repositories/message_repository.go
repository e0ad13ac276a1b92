package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"messenger-service/internal/chatkey"
	"messenger-service/internal/models"
	"messenger-service/internal/store"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSender       = errors.New("only the sender may unsend")
	ErrPollNotFound    = errors.New("poll not found")
	ErrPollExpired     = errors.New("poll has expired")
	ErrPollInvalid     = errors.New("invalid poll definition")
	ErrInvalidEmoji    = errors.New("invalid emoji")
)

// MessageRepository is the conversation log engine. Mutations follow
// the remove-exact-entry/reinsert-at-same-score pattern; concurrent
// mutations of the same message resolve last-write-wins.
type MessageRepository interface {
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID, senderID, text, image string) (models.Message, error)
	UnsendMessage(ctx context.Context, conversationID, actorID, messageID string) (models.Message, error)
	ReactToMessage(ctx context.Context, conversationID, actorID, messageID, emoji string) (models.Message, error)
	CreatePoll(ctx context.Context, conversationID, senderID string, def PollDefinition) (models.Message, error)
	VotePoll(ctx context.Context, conversationID, actorID, messageID string, optionIDs []string) (models.Message, error)
}

// PollDefinition is the input for creating a poll message.
type PollDefinition struct {
	Question           string
	Options            []string
	AllowMultipleVotes bool
	Anonymous          bool
	ExpiresIn          time.Duration
}

// MessageRepo is the Store-backed MessageRepository.
type MessageRepo struct {
	store  store.Store
	images ImageRepository
	now    func() int64
	newID  func() string
}

// NewMessageRepo constructs a MessageRepo. The image repository is
// used to persist inline image payloads out-of-band.
func NewMessageRepo(st store.Store, images ImageRepository) *MessageRepo {
	return &MessageRepo{
		store:  st,
		images: images,
		now:    func() int64 { return time.Now().UnixMilli() },
		newID:  uuid.NewString,
	}
}

// ListMessages returns the conversation log in timestamp order.
// Malformed entries are skipped rather than failing the whole read.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	raw, err := r.store.ZRangeAll(ctx, chatkey.MessagesKey(conversationID))
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	msgs := make([]models.Message, 0, len(raw))
	for _, entry := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// SendMessage validates, persists and returns a new message. A data
// URL image is stored under its own resource key and replaced with a
// short reference so the log stays small.
func (r *MessageRepo) SendMessage(ctx context.Context, conversationID, senderID, text, image string) (models.Message, error) {
	msg := models.Message{
		ID:        r.newID(),
		SenderID:  senderID,
		Text:      strings.TrimSpace(text),
		Image:     image,
		Timestamp: r.now(),
	}
	if err := msg.Validate(); err != nil {
		return models.Message{}, err
	}

	if strings.HasPrefix(msg.Image, "data:") {
		ref, err := r.offloadImage(ctx, msg.Image)
		if err != nil {
			return models.Message{}, err
		}
		msg.Image = ref
	}

	if err := r.append(ctx, conversationID, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// UnsendMessage replaces a message with a tombstone at the same score.
// Only the original sender may unsend; repeating the call on an
// already-tombstoned message is a successful no-op.
func (r *MessageRepo) UnsendMessage(ctx context.Context, conversationID, actorID, messageID string) (models.Message, error) {
	rawEntry, msg, err := r.findMessage(ctx, conversationID, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != actorID {
		return models.Message{}, ErrNotSender
	}
	if msg.IsTombstone() {
		return msg, nil
	}

	tombstone := msg
	tombstone.Text = models.TombstoneText
	tombstone.Image = ""

	if err := r.replaceInPlace(ctx, conversationID, rawEntry, tombstone); err != nil {
		return models.Message{}, err
	}
	return tombstone, nil
}

// ReactToMessage toggles the actor's reaction. Selecting a new emoji
// removes the actor from every other bucket first, so a user holds at
// most one reaction per message. Empty buckets are pruned.
func (r *MessageRepo) ReactToMessage(ctx context.Context, conversationID, actorID, messageID, emoji string) (models.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if !models.ValidEmoji(emoji) {
		return models.Message{}, ErrInvalidEmoji
	}

	rawEntry, msg, err := r.findMessage(ctx, conversationID, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.IsTombstone() {
		return msg, nil
	}

	reactions := msg.Reactions
	if reactions == nil {
		reactions = map[string][]string{}
	}

	hadSame := false
	for _, uid := range reactions[emoji] {
		if uid == actorID {
			hadSame = true
			break
		}
	}

	for key, users := range reactions {
		filtered := users[:0]
		for _, uid := range users {
			if uid != actorID {
				filtered = append(filtered, uid)
			}
		}
		if len(filtered) == 0 {
			delete(reactions, key)
		} else {
			reactions[key] = filtered
		}
	}

	if !hadSame {
		reactions[emoji] = append(reactions[emoji], actorID)
	}
	if len(reactions) == 0 {
		reactions = nil
	}
	msg.Reactions = reactions

	if err := r.replaceInPlace(ctx, conversationID, rawEntry, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// CreatePoll appends a poll-typed message to the conversation log.
func (r *MessageRepo) CreatePoll(ctx context.Context, conversationID, senderID string, def PollDefinition) (models.Message, error) {
	question := strings.TrimSpace(def.Question)
	options := make([]models.PollOption, 0, len(def.Options))
	for _, text := range def.Options {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		options = append(options, models.PollOption{ID: r.newID(), Text: text, Votes: []string{}})
	}
	if question == "" || len(options) < 2 {
		return models.Message{}, ErrPollInvalid
	}

	now := r.now()
	poll := &models.Poll{
		Question:           question,
		Options:            options,
		AllowMultipleVotes: def.AllowMultipleVotes,
		Anonymous:          def.Anonymous,
	}
	if def.ExpiresIn > 0 {
		poll.ExpiresAt = now + def.ExpiresIn.Milliseconds()
	}

	msg := models.Message{
		ID:        r.newID(),
		SenderID:  senderID,
		Text:      "Poll: " + question,
		Timestamp: now,
		Type:      models.MessageTypePoll,
		Poll:      poll,
	}
	if err := r.append(ctx, conversationID, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// VotePoll replaces the actor's votes with the given selection. On
// single-vote polls the selection collapses to the first valid option
// id, in list order. TotalVotes is recomputed, never incremented.
func (r *MessageRepo) VotePoll(ctx context.Context, conversationID, actorID, messageID string, optionIDs []string) (models.Message, error) {
	rawEntry, msg, err := r.findMessage(ctx, conversationID, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if !msg.IsPoll() {
		return models.Message{}, ErrPollNotFound
	}
	if msg.Poll.Expired(r.now()) {
		return models.Message{}, ErrPollExpired
	}

	valid := make(map[string]bool, len(msg.Poll.Options))
	for _, opt := range msg.Poll.Options {
		valid[opt.ID] = true
	}

	selected := make(map[string]bool, len(optionIDs))
	for _, id := range optionIDs {
		if !valid[id] {
			continue
		}
		selected[id] = true
		if !msg.Poll.AllowMultipleVotes {
			break
		}
	}

	for i, opt := range msg.Poll.Options {
		votes := opt.Votes[:0]
		for _, uid := range opt.Votes {
			if uid != actorID {
				votes = append(votes, uid)
			}
		}
		if selected[opt.ID] {
			votes = append(votes, actorID)
		}
		msg.Poll.Options[i].Votes = votes
	}
	msg.Poll.RecomputeTotalVotes()

	if err := r.replaceInPlace(ctx, conversationID, rawEntry, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (r *MessageRepo) append(ctx context.Context, conversationID string, msg models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := r.store.ZAdd(ctx, chatkey.MessagesKey(conversationID), float64(msg.Timestamp), string(payload)); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// findMessage scans the log for the message id. The log is indexed by
// score only, so a linear scan is the lookup path; acceptable at this
// system's scale.
func (r *MessageRepo) findMessage(ctx context.Context, conversationID, messageID string) (string, models.Message, error) {
	raw, err := r.store.ZRangeAll(ctx, chatkey.MessagesKey(conversationID))
	if err != nil {
		return "", models.Message{}, fmt.Errorf("read log: %w", err)
	}
	for _, entry := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			continue
		}
		if m.ID == messageID {
			return entry, m, nil
		}
	}
	return "", models.Message{}, ErrMessageNotFound
}

// replaceInPlace removes the exact stored entry and reinserts the
// updated message under the original timestamp score, preserving the
// message's position in the log.
func (r *MessageRepo) replaceInPlace(ctx context.Context, conversationID, rawEntry string, updated models.Message) error {
	key := chatkey.MessagesKey(conversationID)
	payload, err := json.Marshal(updated)
	if err != nil {
		return err
	}
	if err := r.store.ZRem(ctx, key, rawEntry); err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	if err := r.store.ZAdd(ctx, key, float64(updated.Timestamp), string(payload)); err != nil {
		return fmt.Errorf("reinsert entry: %w", err)
	}
	return nil
}

func (r *MessageRepo) offloadImage(ctx context.Context, dataURL string) (string, error) {
	mime, data, err := parseImageDataURL(dataURL)
	if err != nil {
		return "", err
	}
	return r.images.SaveImage(ctx, mime, data)
}
