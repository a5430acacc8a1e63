// Package output renders terminal events and notification listings for stdout.
//
// Rendering is pure: the same input always produces the same bytes, and no
// result ends with a newline.
package output

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ariel-frischer/alerter/internal/notify"
)

// TimeLayout is the timestamp format of every rendered time.
const TimeLayout = "2006-01-02 15:04:05 -0700"

// Plain-text sentinels for events without a value to print.
const (
	SentinelClosed         = "@CLOSED"
	SentinelTimeout        = "@TIMEOUT"
	SentinelContentClicked = "@CONTENTCLICKED"
	SentinelActionClicked  = "@ACTIONCLICKED"
	SentinelNone           = "@NONE"
)

// Event renders ev as JSON when asJSON is set, as plain text otherwise.
func Event(ev notify.Event, asJSON bool) string {
	if asJSON {
		return JSON(ev)
	}
	return Text(ev)
}

// Text renders ev as its value or a sentinel.
func Text(ev notify.Event) string {
	switch ev.Type {
	case notify.TypeClosed:
		return valueOr(ev.Value, SentinelClosed)
	case notify.TypeTimeout:
		return SentinelTimeout
	case notify.TypeContentsClicked:
		return SentinelContentClicked
	case notify.TypeActionClicked, notify.TypeReplied:
		return valueOr(ev.Value, SentinelActionClicked)
	default:
		return SentinelNone
	}
}

func valueOr(value, sentinel string) string {
	if value == "" {
		return sentinel
	}
	return value
}

// JSON renders ev as a pretty-printed object with sorted keys.
func JSON(ev notify.Event) string {
	record := map[string]string{
		"activationType": string(ev.Type),
		"activationAt":   FormatTime(ev.ActivatedAt),
	}
	if ev.Value != "" {
		record["activationValue"] = ev.Value
	}
	if ev.ValueIndex != nil {
		record["activationValueIndex"] = strconv.Itoa(*ev.ValueIndex)
	}
	if !ev.DeliveredAt.IsZero() {
		record["deliveredAt"] = FormatTime(ev.DeliveredAt)
	}
	return marshal(record, "{}")
}

// Summaries renders a listing as a JSON array of records. An empty listing
// renders as the empty string: nothing is printed.
func Summaries(list []notify.Summary) string {
	if len(list) == 0 {
		return ""
	}
	records := make([]map[string]string, 0, len(list))
	for _, s := range list {
		record := map[string]string{}
		setIf(record, "groupID", s.Group)
		setIf(record, "title", s.Title)
		setIf(record, "subtitle", s.Subtitle)
		setIf(record, "message", s.Message)
		if !s.DeliveredAt.IsZero() {
			record["deliveredAt"] = FormatTime(s.DeliveredAt)
		}
		records = append(records, record)
	}
	return marshal(records, "[]")
}

func setIf(record map[string]string, key, value string) {
	if value != "" {
		record[key] = value
	}
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// marshal encodes v indented, without HTML escaping and without the
// encoder's trailing newline. Maps encode with sorted keys.
func marshal(v any, fallback string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fallback
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
