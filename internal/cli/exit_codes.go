package cli

import (
	"github.com/ariel-frischer/alerter/internal/cli/shared"
)

// Exit codes for the alerter CLI (re-exported from shared)
const (
	// ExitSuccess indicates a terminal event was printed, or list/remove finished
	ExitSuccess = shared.ExitSuccess

	// ExitFailure indicates a generic failure or a signal-triggered exit
	ExitFailure = shared.ExitFailure

	// ExitInvalidArguments indicates invalid command arguments
	ExitInvalidArguments = shared.ExitInvalidArguments

	// ExitServiceRejected indicates the notification service refused the delivery
	ExitServiceRejected = shared.ExitServiceRejected

	// ExitAuthorizationDenied indicates the sender may not present notifications
	ExitAuthorizationDenied = shared.ExitAuthorizationDenied
)
