package puzzleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	serverErrorTooFast         = "too fast"
	serverErrorAlreadyAnswered = "already answered"

	maxCooldownSkew = time.Second
)

var timeoutEndLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// AnswerResult is the server's reply to an accepted submission. Incorrect
// answers carry the cooldown the team must observe before guessing again.
type AnswerResult struct {
	Correct       bool
	Guess         string
	By            string
	TimeoutLength time.Duration
	TimeoutEnd    time.Time
}

type answerResponse struct {
	Correct       flexibleBool `json:"correct"`
	Guess         string       `json:"guess"`
	By            string       `json:"by"`
	TimeoutLength float64      `json:"timeout_length"`
	TimeoutEnd    string       `json:"timeout_end"`
	Error         string       `json:"error"`
}

// flexibleBool accepts a JSON boolean or the strings "true"/"false".
type flexibleBool bool

func (b *flexibleBool) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*b = false
		return nil
	}
	var value bool
	if err := json.Unmarshal(trimmed, &value); err == nil {
		*b = flexibleBool(value)
		return nil
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return fmt.Errorf("correct flag: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true":
		*b = true
	case "false", "":
		*b = false
	default:
		return fmt.Errorf("correct flag: unexpected value %q", text)
	}
	return nil
}

// SubmitAnswer posts a guess for the puzzle.
func (c *Client) SubmitAnswer(ctx context.Context, answer string) (AnswerResult, error) {
	if strings.TrimSpace(answer) == "" {
		return AnswerResult{}, newAPIError(operationSubmitAnswer, reasonValidation, 0, "", ErrEmptyAnswer)
	}
	response, err := c.postForm(ctx, operationSubmitAnswer, answerPath, url.Values{"answer": {answer}})
	if err != nil {
		return AnswerResult{}, err
	}
	defer response.Body.Close()

	var body answerResponse
	decodeErr := json.NewDecoder(io.LimitReader(response.Body, maxErrorBody)).Decode(&body)
	if response.StatusCode >= http.StatusBadRequest {
		return AnswerResult{}, c.logFailure(newAPIError(operationSubmitAnswer, reasonRejected, response.StatusCode, body.Error, classifySubmissionError(body.Error)))
	}
	if decodeErr != nil {
		return AnswerResult{}, c.logFailure(newAPIError(operationSubmitAnswer, reasonDecode, response.StatusCode, "", fmt.Errorf("%w: %w", ErrRequestFailed, decodeErr)))
	}
	if body.Error != "" {
		return AnswerResult{}, c.logFailure(newAPIError(operationSubmitAnswer, reasonRejected, response.StatusCode, body.Error, classifySubmissionError(body.Error)))
	}

	result := AnswerResult{
		Correct:       bool(body.Correct),
		Guess:         body.Guess,
		By:            body.By,
		TimeoutLength: time.Duration(body.TimeoutLength * float64(time.Millisecond)),
	}
	if body.TimeoutEnd != "" {
		end, err := parseTimeoutEnd(body.TimeoutEnd)
		if err != nil {
			c.logger.Debug("unparseable timeout end; using timeout length")
		} else {
			result.TimeoutEnd = end
		}
	}
	return result, nil
}

// Cooldown returns how long to wait before the next guess. The server's
// timeout end is used unless it disagrees with the advertised timeout length
// by more than a second, which indicates clock skew; then the length wins.
func Cooldown(result AnswerResult, now time.Time) time.Duration {
	if result.Correct {
		return 0
	}
	if result.TimeoutEnd.IsZero() {
		return result.TimeoutLength
	}
	remaining := result.TimeoutEnd.Sub(now)
	if math.Abs(float64(result.TimeoutLength-remaining)) > float64(maxCooldownSkew) {
		remaining = result.TimeoutLength
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SubmissionMessage returns the inline text shown for a failed submission
// and, for unexpected failures, the underlying detail.
func SubmissionMessage(err error) (string, string) {
	switch {
	case errors.Is(err, ErrTooFast):
		return "Slow down there, sparky! You're supposed to wait 5s between submissions.", ""
	case errors.Is(err, ErrAlreadyAnswered):
		return "Your team has already correctly answered this puzzle!", ""
	default:
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		return "There was an error submitting the answer.", detail
	}
}

func classifySubmissionError(message string) error {
	switch strings.TrimSpace(message) {
	case serverErrorTooFast:
		return ErrTooFast
	case serverErrorAlreadyAnswered:
		return ErrAlreadyAnswered
	default:
		return ErrSubmissionFailed
	}
}

func parseTimeoutEnd(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	var lastErr error
	for _, layout := range timeoutEndLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
