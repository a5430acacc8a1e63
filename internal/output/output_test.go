// Package output tests event and listing rendering.
// Related: internal/output/output.go
// Tags: output, formatting, json

package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariel-frischer/alerter/internal/notify"
)

var (
	zone      = time.FixedZone("CET", 3600)
	activated = time.Date(2024, 3, 9, 14, 5, 6, 0, zone)
	delivered = time.Date(2024, 3, 9, 14, 4, 0, 0, zone)
)

func idx(i int) *int { return &i }

func TestText(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		ev   notify.Event
		want string
	}{
		"closed with label":    {ev: notify.Event{Type: notify.TypeClosed, Value: "Later"}, want: "Later"},
		"closed without label": {ev: notify.Event{Type: notify.TypeClosed}, want: "@CLOSED"},
		"timeout":              {ev: notify.Event{Type: notify.TypeTimeout, Value: "ignored"}, want: "@TIMEOUT"},
		"contents clicked":     {ev: notify.Event{Type: notify.TypeContentsClicked}, want: "@CONTENTCLICKED"},
		"action with label":    {ev: notify.Event{Type: notify.TypeActionClicked, Value: "Dismiss", ValueIndex: idx(1)}, want: "Dismiss"},
		"action without label": {ev: notify.Event{Type: notify.TypeActionClicked}, want: "@ACTIONCLICKED"},
		"reply text":           {ev: notify.Event{Type: notify.TypeReplied, Value: "on my way"}, want: "on my way"},
		"empty reply":          {ev: notify.Event{Type: notify.TypeReplied}, want: "@ACTIONCLICKED"},
		"none":                 {ev: notify.Event{Type: notify.TypeNone}, want: "@NONE"},
		"unknown type is none": {ev: notify.Event{Type: "weird"}, want: "@NONE"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Text(tc.ev))
			assert.Equal(t, tc.want, Event(tc.ev, false))
		})
	}
}

func TestJSON(t *testing.T) {
	t.Parallel()

	ev := notify.Event{
		Type:        notify.TypeActionClicked,
		Value:       "Dismiss",
		ValueIndex:  idx(1),
		DeliveredAt: delivered,
		ActivatedAt: activated,
	}
	want := `{
  "activationAt": "2024-03-09 14:05:06 +0100",
  "activationType": "actionClicked",
  "activationValue": "Dismiss",
  "activationValueIndex": "1",
  "deliveredAt": "2024-03-09 14:04:00 +0100"
}`
	assert.Equal(t, want, JSON(ev))
	assert.Equal(t, want, Event(ev, true))
}

func TestJSONOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	got := JSON(notify.Event{Type: notify.TypeTimeout, ActivatedAt: activated})
	assert.Equal(t, `{
  "activationAt": "2024-03-09 14:05:06 +0100",
  "activationType": "timeout"
}`, got)
}

func TestJSONDoesNotEscapeHTML(t *testing.T) {
	t.Parallel()

	got := JSON(notify.Event{Type: notify.TypeReplied, Value: "a<b> & c", ActivatedAt: activated})
	assert.Contains(t, got, `"activationValue": "a<b> & c"`)
}

func TestRenderingIsDeterministic(t *testing.T) {
	t.Parallel()

	types := []notify.ActivationType{
		notify.TypeClosed, notify.TypeTimeout, notify.TypeContentsClicked,
		notify.TypeActionClicked, notify.TypeReplied, notify.TypeNone,
	}
	for _, typ := range types {
		ev := notify.Event{Type: typ, Value: "v", ValueIndex: idx(0), DeliveredAt: delivered, ActivatedAt: activated}
		for _, asJSON := range []bool{false, true} {
			first := Event(ev, asJSON)
			assert.Equal(t, first, Event(ev, asJSON), "%s json=%v", typ, asJSON)
			assert.NotRegexp(t, `\n$`, first)
		}
	}
}

func TestSummaries(t *testing.T) {
	t.Parallel()

	t.Run("empty listing prints nothing", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, Summaries(nil))
		assert.Empty(t, Summaries([]notify.Summary{}))
	})

	t.Run("records with sorted keys", func(t *testing.T) {
		t.Parallel()

		got := Summaries([]notify.Summary{
			{Token: "t1", Group: "team-x", Title: "Build", Message: "done", DeliveredAt: delivered},
			{Token: "t2", Title: "Deploy", Subtitle: "prod", Message: "started"},
		})
		want := `[
  {
    "deliveredAt": "2024-03-09 14:04:00 +0100",
    "groupID": "team-x",
    "message": "done",
    "title": "Build"
  },
  {
    "message": "started",
    "subtitle": "prod",
    "title": "Deploy"
  }
]`
		assert.Equal(t, want, got)

		var decoded []map[string]string
		require.NoError(t, json.Unmarshal([]byte(got), &decoded))
		assert.Len(t, decoded, 2)
		assert.NotContains(t, decoded[0], "token", "tokens are internal")
	})
}
