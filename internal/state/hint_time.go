package state

import (
	"cmp"
	"strconv"
	"strings"
	"time"
)

type hintTimeKind int

const (
	hintTimeDelta hintTimeKind = iota
	hintTimeInstant
	hintTimeOther
)

type hintTimeKey struct {
	kind    hintTimeKind
	offset  time.Duration
	instant time.Time
	raw     string
}

func parseHintTime(value string) hintTimeKey {
	if offset, ok := parseTimedelta(value); ok {
		return hintTimeKey{kind: hintTimeDelta, offset: offset, raw: value}
	}
	if instant, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return hintTimeKey{kind: hintTimeInstant, instant: instant, raw: value}
	}
	return hintTimeKey{kind: hintTimeOther, raw: value}
}

// compareHintTimes orders hint times. The server sends either a duration in
// Python timedelta form ("0:10:00", "1 day, 2:00:00") or an RFC 3339 instant;
// anything else sorts after both in lexical order. Durations sort before
// instants so mixed inputs still form a total order.
func compareHintTimes(left, right string) int {
	leftKey, rightKey := parseHintTime(left), parseHintTime(right)
	if order := cmp.Compare(leftKey.kind, rightKey.kind); order != 0 {
		return order
	}
	switch leftKey.kind {
	case hintTimeDelta:
		if order := cmp.Compare(leftKey.offset, rightKey.offset); order != 0 {
			return order
		}
	case hintTimeInstant:
		if order := leftKey.instant.Compare(rightKey.instant); order != 0 {
			return order
		}
	}
	return strings.Compare(leftKey.raw, rightKey.raw)
}

func parseTimedelta(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	var days int64
	if dayPart, clockPart, found := strings.Cut(value, ","); found {
		fields := strings.Fields(dayPart)
		if len(fields) != 2 || (fields[1] != "day" && fields[1] != "days") {
			return 0, false
		}
		parsed, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return 0, false
		}
		days = parsed
		value = strings.TrimSpace(clockPart)
	}

	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || minutes < 0 || minutes > 59 || len(parts[1]) != 2 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, false
	}

	total := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return total, true
}
