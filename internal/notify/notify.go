package notify

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
)

const (
	// GroupAll is the reserved group filter that matches every notification.
	GroupAll = "ALL"

	// MaxActions is the number of action buttons a notification can carry.
	MaxActions = 4

	// DefaultSound selects the platform's default notification sound.
	DefaultSound = "default"
)

// Sentinel errors. Callers wrap these so the entry point can map them to
// exit codes without knowing which layer failed.
var (
	// ErrValidation marks invalid user input. Nothing has been delivered.
	ErrValidation = errors.New("invalid request")
	// ErrServiceRejected marks a delivery the notification service refused.
	ErrServiceRejected = errors.New("notification service rejected the request")
	// ErrAuthorizationDenied marks a sender identity without permission to notify.
	ErrAuthorizationDenied = errors.New("notification authorization denied")
	// ErrUnsupportedFeature marks an option the active service ignores.
	ErrUnsupportedFeature = errors.New("unsupported option")
	// ErrUnsupportedPlatform is returned when no adapter exists for the running OS.
	ErrUnsupportedPlatform = errors.New("notifications are not supported on this platform")
)

// ActivationType names the terminal outcome of a notification.
type ActivationType string

const (
	// TypeClosed means the notification was dismissed.
	TypeClosed ActivationType = "closed"
	// TypeTimeout means the notification outlived Request.Timeout.
	TypeTimeout ActivationType = "timeout"
	// TypeContentsClicked means the notification body was clicked.
	TypeContentsClicked ActivationType = "contentsClicked"
	// TypeActionClicked means an action button was pressed.
	TypeActionClicked ActivationType = "actionClicked"
	// TypeReplied means the user sent a reply.
	TypeReplied ActivationType = "replied"
	// TypeNone means the platform reported an interaction it did not classify.
	TypeNone ActivationType = "none"
)

// Request is one notification to deliver. It is built once per invocation
// and never mutated afterwards.
type Request struct {
	Title            string `validate:"required"`
	Subtitle         string
	Message          string `validate:"required"`
	CloseLabel       string
	Actions          []string `validate:"max=4,dive,required"`
	DropdownLabel    string
	ReplyPlaceholder string
	Sound            string
	Group            string
	AppIcon          string
	ContentImage     string
	Timeout          time.Duration `validate:"min=0"`
	JSON             bool
	IgnoreDnD        bool

	// Token correlates asynchronous callbacks with this request. It is the
	// only key used to recognise "our" notification.
	Token string `validate:"required"`
}

var requestValidator = validator.New()

// Validate checks the request invariants. The returned error wraps ErrValidation.
func (r Request) Validate() error {
	if len(r.Actions) > 0 && r.ReplyPlaceholder != "" {
		return fmt.Errorf("%w: actions and reply cannot be combined", ErrValidation)
	}
	if err := requestValidator.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrValidation, describeFieldError(verrs[0]))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Actions":
		if fe.Tag() == "max" {
			return fmt.Sprintf("at most %d actions are allowed", MaxActions)
		}
		return "action labels cannot be empty"
	case "Timeout":
		return "timeout cannot be negative"
	}
	if strings.HasPrefix(fe.Namespace(), "Request.Actions[") {
		return "action labels cannot be empty"
	}
	return fmt.Sprintf("%s is required", strings.ToLower(fe.StructField()))
}

// NewToken returns a fresh correlation token.
func NewToken() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// SplitActions turns a comma separated label list into action labels.
// Blank entries are kept so validation can reject them.
func SplitActions(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// MatchesGroup reports whether a notification in group matches filter.
func MatchesGroup(filter, group string) bool {
	return filter == GroupAll || filter == group
}

// Handle identifies a notification the service has accepted.
type Handle struct {
	Token       string
	PlatformID  string
	DeliveredAt time.Time
}

// Event is the terminal outcome of a request.
type Event struct {
	Type        ActivationType
	Value       string
	ValueIndex  *int
	DeliveredAt time.Time
	ActivatedAt time.Time
}

// ActivationKind is the interaction subtype reported by a platform adapter.
type ActivationKind int

const (
	// KindUnknown is an interaction the adapter could not classify.
	KindUnknown ActivationKind = iota
	// KindContentsClicked is a click on the notification body.
	KindContentsClicked
	// KindActionClicked is a press of action button ActionIndex.
	KindActionClicked
	// KindReplied is a reply carrying Text.
	KindReplied
	// KindDismissed is a dismissal the platform reported explicitly.
	KindDismissed
)

// Activation is a raw interaction callback from a platform adapter.
type Activation struct {
	Token       string
	Kind        ActivationKind
	ActionIndex int
	Text        string
	DeliveredAt time.Time
}

// Summary describes one notification currently delivered by the platform.
type Summary struct {
	Token       string
	Group       string
	Title       string
	Subtitle    string
	Message     string
	DeliveredAt time.Time
}

// AuthStatus is the sender's permission to present notifications.
type AuthStatus int

const (
	AuthUndetermined AuthStatus = iota
	AuthDenied
	AuthGranted
)

func (s AuthStatus) String() string {
	switch s {
	case AuthDenied:
		return "denied"
	case AuthGranted:
		return "granted"
	default:
		return "undetermined"
	}
}
