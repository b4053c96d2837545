package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MessageType is the type tag of an inbound server frame.
type MessageType string

const (
	MessageAnnouncement       MessageType = "announcement"
	MessageDeleteAnnouncement MessageType = "delete_announcement"
	MessageNewGuesses         MessageType = "new_guesses"
	MessageOldGuesses         MessageType = "old_guesses"
	MessageSolved             MessageType = "solved"
	MessageNewUnlock          MessageType = "new_unlock"
	MessageOldUnlock          MessageType = "old_unlock"
	MessageChangeUnlock       MessageType = "change_unlock"
	MessageDeleteUnlock       MessageType = "delete_unlock"
	MessageDeleteUnlockGuess  MessageType = "delete_unlockguess"
	MessageNewHint            MessageType = "new_hint"
	MessageOldHint            MessageType = "old_hint"
	MessageDeleteHint         MessageType = "delete_hint"
	MessageError              MessageType = "error"
)

// MessageTypes lists every tag the server may send.
func MessageTypes() []MessageType {
	return []MessageType{
		MessageAnnouncement,
		MessageDeleteAnnouncement,
		MessageNewGuesses,
		MessageOldGuesses,
		MessageSolved,
		MessageNewUnlock,
		MessageOldUnlock,
		MessageChangeUnlock,
		MessageDeleteUnlock,
		MessageDeleteUnlockGuess,
		MessageNewHint,
		MessageOldHint,
		MessageDeleteHint,
		MessageError,
	}
}

// String returns the raw tag.
func (t MessageType) String() string {
	return string(t)
}

// Envelope is the {type, content} wrapper of every inbound frame.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Content json.RawMessage `json:"content"`
}

// DecodeEnvelope parses a raw frame into its envelope.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return Envelope{}, newProtocolError(opDecodeEnvelope, reasonInvalidJSON, "",
			fmt.Errorf("%w: %v", ErrProtocol, err))
	}
	if strings.TrimSpace(envelope.Type.String()) == "" {
		return Envelope{}, newProtocolError(opDecodeEnvelope, reasonMissingType, "",
			fmt.Errorf("%w: no type in message", ErrProtocol))
	}
	return envelope, nil
}

// DecodeContent decodes the envelope content into the payload type T.
func DecodeContent[T any](envelope Envelope) (T, error) {
	var content T
	raw := envelope.Content
	if len(bytes.TrimSpace(raw)) == 0 {
		return content, newProtocolError(opDecodeContent, reasonInvalidContent, envelope.Type,
			fmt.Errorf("%w: empty content", ErrProtocol))
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return content, newProtocolError(opDecodeContent, reasonInvalidContent, envelope.Type,
			fmt.Errorf("%w: %v", ErrProtocol, err))
	}
	return content, nil
}

// FlexibleID accepts identifiers sent either as JSON strings or numbers.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*id = FlexibleID(value)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*id = FlexibleID(number.String())
	return nil
}

// String returns the identifier.
func (id FlexibleID) String() string {
	return string(id)
}

// NotifyOption is the announcement notification policy.
type NotifyOption string

const (
	NotifyNone   NotifyOption = "NONE"
	NotifyCreate NotifyOption = "CREATE"
	NotifyUpdate NotifyOption = "UPDATE"
)

// UnmarshalJSON accepts the long names as well as the single-letter codes N, C and U.
func (option *NotifyOption) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*option = ""
		return nil
	}
	switch strings.ToUpper(strings.TrimSpace(*raw)) {
	case "":
		*option = ""
	case "N", string(NotifyNone):
		*option = NotifyNone
	case "C", string(NotifyCreate):
		*option = NotifyCreate
	case "U", string(NotifyUpdate):
		*option = NotifyUpdate
	default:
		return fmt.Errorf("unknown notify option %q", *raw)
	}
	return nil
}

// ShouldNotify resolves the option for an announcement. An absent option
// behaves like UPDATE.
func (option NotifyOption) ShouldNotify(previouslySeen bool) bool {
	switch option {
	case NotifyNone:
		return false
	case NotifyCreate:
		return !previouslySeen
	default:
		return true
	}
}

// GuessContent is one entry of new_guesses/old_guesses.
type GuessContent struct {
	By        string `json:"by"`
	Guess     string `json:"guess"`
	Correct   bool   `json:"correct"`
	GuessUID  string `json:"guess_uid"`
	Timestamp string `json:"timestamp,omitempty"`
}

// HintContent is the payload of new_hint/old_hint.
type HintContent struct {
	HintUID            string  `json:"hint_uid"`
	Time               string  `json:"time"`
	Hint               string  `json:"hint"`
	DependsOnUnlockUID *string `json:"depends_on_unlock_uid"`
	Accepted           bool    `json:"accepted"`
}

// DeleteHintContent is the payload of delete_hint.
type DeleteHintContent struct {
	HintUID            string  `json:"hint_uid"`
	DependsOnUnlockUID *string `json:"depends_on_unlock_uid"`
}

// UnlockContent is the payload of new_unlock/old_unlock.
type UnlockContent struct {
	UnlockUID string  `json:"unlock_uid"`
	Unlock    *string `json:"unlock"`
	Guess     string  `json:"guess"`
}

// ChangeUnlockContent is the payload of change_unlock.
type ChangeUnlockContent struct {
	UnlockUID string `json:"unlock_uid"`
	Unlock    string `json:"unlock"`
}

// DeleteUnlockContent is the payload of delete_unlock.
type DeleteUnlockContent struct {
	UnlockUID string `json:"unlock_uid"`
}

// DeleteUnlockGuessContent is the payload of delete_unlockguess.
type DeleteUnlockGuessContent struct {
	UnlockUID string `json:"unlock_uid"`
	Guess     string `json:"guess"`
}

// AnnouncementContent is the payload of announcement.
type AnnouncementContent struct {
	AnnouncementID FlexibleID   `json:"announcement_id"`
	Title          string       `json:"title"`
	Message        string       `json:"message"`
	Variant        string       `json:"variant"`
	Dismissible    *bool        `json:"dismissible,omitempty"`
	Notify         NotifyOption `json:"notify,omitempty"`
}

// DeleteAnnouncementContent is the payload of delete_announcement.
type DeleteAnnouncementContent struct {
	AnnouncementID FlexibleID `json:"announcement_id"`
}

// SolvedContent is the payload of solved. Time is the solve duration in seconds.
type SolvedContent struct {
	Guess    string  `json:"guess"`
	By       string  `json:"by"`
	Time     float64 `json:"time"`
	Text     string  `json:"text"`
	Redirect string  `json:"redirect"`
}

// ErrorContent is the payload of error.
type ErrorContent struct {
	Error string `json:"error"`
}
