// Package shared tests exit code mapping and the warning printer.
// Related: internal/cli/shared/constants.go, internal/cli/shared/printer.go
// Tags: cli, exit-codes, errors, warnings
package shared

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/ariel-frischer/alerter/internal/notify"
	"github.com/ariel-frischer/alerter/internal/schedule"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":                   {err: nil, want: ExitSuccess},
		"generic":               {err: errors.New("boom"), want: ExitFailure},
		"validation":            {err: fmt.Errorf("%w: message is required", notify.ErrValidation), want: ExitInvalidArguments},
		"schedule":              {err: fmt.Errorf("%w: bad --at", schedule.ErrInvalidSchedule), want: ExitInvalidArguments},
		"rejected":              {err: fmt.Errorf("%w: nope", notify.ErrServiceRejected), want: ExitServiceRejected},
		"auth denied":           {err: fmt.Errorf("%w: nope", notify.ErrAuthorizationDenied), want: ExitAuthorizationDenied},
		"explicit code":         {err: NewExitError(7), want: 7},
		"wrapped explicit code": {err: fmt.Errorf("child: %w", NewExitError(9)), want: 9},
		"unsupported platform":  {err: notify.ErrUnsupportedPlatform, want: ExitFailure},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestIsSilent(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSilent(NewExitError(1)))
	assert.False(t, IsSilent(errors.New("x")))
	assert.False(t, IsSilent(nil))
}

func TestPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Warn(fmt.Errorf("%w: --app-icon has no effect", notify.ErrUnsupportedFeature))
	p.Warnf("ledger %s unreadable", "delivered.yaml")
	p.Error(errors.New("notification service rejected the request"))

	assert.Equal(t,
		"[!] warning: unsupported option: --app-icon has no effect\n"+
			"[!] warning: ledger delivered.yaml unreadable\n"+
			"[!] notification service rejected the request\n",
		buf.String())
}
