package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/ariel-frischer/alerter/internal/config"
	"github.com/ariel-frischer/alerter/internal/launch"
	"github.com/ariel-frischer/alerter/internal/notify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// operation is the top-level action of one invocation.
type operation int

const (
	opNone operation = iota
	opDeliver
	opList
	opRemove
)

func (o operation) String() string {
	switch o {
	case opDeliver:
		return "deliver"
	case opList:
		return "list"
	case opRemove:
		return "remove"
	default:
		return "none"
	}
}

// class maps the operation onto the relaunch protocol's operation class.
func (o operation) class() launch.OperationClass {
	if o == opDeliver {
		return launch.Delivery
	}
	return launch.Management
}

// options holds the parsed command line.
type options struct {
	Message          string
	Remove           string
	List             string
	Title            string
	Subtitle         string
	CloseLabel       string
	Actions          string
	DropdownLabel    string
	ReplyPlaceholder string
	Sound            string
	Group            string
	Sender           string
	AppIcon          string
	ContentImage     string
	Timeout          int
	JSON             bool
	IgnoreDnD        bool
	Delay            int
	At               string
	ConfigPath       string
	Debug            bool

	// Relaunched is the session directory of a provisioned child.
	Relaunched string

	// piped is set when Message came from stdin.
	piped bool
}

func registerFlags(cmd *cobra.Command, o *options) {
	f := cmd.Flags()

	f.StringVar(&o.Message, "message", "", "Notification body (read from stdin when piped)")
	f.StringVar(&o.Remove, "remove", "", "Remove delivered notifications of a group `ID`, or ALL")
	f.StringVar(&o.List, "list", "", "List delivered notifications of a group `ID`, or ALL")

	f.StringVar(&o.Title, "title", "", "Notification title (default from config: Terminal)")
	f.StringVar(&o.Subtitle, "subtitle", "", "Notification subtitle")
	f.StringVar(&o.CloseLabel, "close-label", "", "Label of the close button, printed when the notification is closed")
	f.StringVar(&o.Actions, "actions", "", "Comma separated action `labels` (at most 4)")
	f.StringVar(&o.DropdownLabel, "dropdown-label", "", "Label of the actions dropdown when several actions are given")
	f.StringVar(&o.ReplyPlaceholder, "reply", "", "Show a reply field with this `placeholder`")
	f.StringVar(&o.Sound, "sound", "", "Sound to play: \"default\" or a sound name")
	f.StringVar(&o.Group, "group", "", "Group `ID`; a new notification replaces older ones of the same group")
	f.StringVar(&o.Sender, "sender", "", "Application identity the notification appears to come from")
	f.StringVar(&o.AppIcon, "app-icon", "", "Icon `URL or path` shown in place of the sender's icon")
	f.StringVar(&o.ContentImage, "content-image", "", "Image `URL or path` attached to the notification")
	f.IntVar(&o.Timeout, "timeout", 0, "Close the notification after `seconds` (0 waits forever)")
	f.BoolVar(&o.JSON, "json", false, "Print the outcome as JSON")
	f.BoolVar(&o.IgnoreDnD, "ignore-dnd", false, "Deliver even when Do Not Disturb is on")
	f.IntVar(&o.Delay, "delay", 0, "Wait `seconds` before delivering")
	f.StringVar(&o.At, "at", "", "Deliver at `HH:MM` or \"YYYY-MM-DD HH:MM\" local time")

	f.StringVar(&o.ConfigPath, "config", "", "Path to config file (default <user config dir>/alerter/config.json)")
	f.BoolVar(&o.Debug, "debug", false, "Enable debug logging on stderr")

	f.StringVar(&o.Relaunched, launch.MarkerFlag, "", "")
	_ = f.MarkHidden(launch.MarkerFlag)

	cmd.MarkFlagsMutuallyExclusive("message", "remove", "list")
	cmd.MarkFlagsMutuallyExclusive("actions", "reply")
	cmd.MarkFlagsMutuallyExclusive("delay", "at")
}

// operation reports what the command line asks for. Piped stdin has already
// been folded into Message.
func (o *options) operation(flags *pflag.FlagSet) (operation, error) {
	switch {
	case flags.Changed("list"):
		if strings.TrimSpace(o.List) == "" {
			return opNone, fmt.Errorf("%w: --list needs a group ID or %s", notify.ErrValidation, notify.GroupAll)
		}
		return opList, nil
	case flags.Changed("remove"):
		if strings.TrimSpace(o.Remove) == "" {
			return opNone, fmt.Errorf("%w: --remove needs a group ID or %s", notify.ErrValidation, notify.GroupAll)
		}
		return opRemove, nil
	case o.Message != "":
		return opDeliver, nil
	default:
		return opNone, fmt.Errorf("%w: nothing to do, use --message, --list or --remove (or pipe a message)", notify.ErrValidation)
	}
}

// applyConfig fills options the command line left unset from cfg.
func (o *options) applyConfig(flags *pflag.FlagSet, cfg *config.Configuration) {
	if !flags.Changed("title") {
		o.Title = cfg.Title
	}
	if !flags.Changed("sender") {
		o.Sender = cfg.Sender
	}
	if !flags.Changed("sound") {
		o.Sound = cfg.Sound
	}
	if !flags.Changed("json") {
		o.JSON = cfg.JSON
	}
	if !flags.Changed("debug") {
		o.Debug = cfg.Debug
	}
}

// request builds the immutable notification request with a fresh token.
func (o *options) request() notify.Request {
	return notify.Request{
		Title:            o.Title,
		Subtitle:         o.Subtitle,
		Message:          o.Message,
		CloseLabel:       o.CloseLabel,
		Actions:          notify.SplitActions(o.Actions),
		DropdownLabel:    o.DropdownLabel,
		ReplyPlaceholder: o.ReplyPlaceholder,
		Sound:            o.Sound,
		Group:            o.Group,
		AppIcon:          o.AppIcon,
		ContentImage:     o.ContentImage,
		Timeout:          time.Duration(o.Timeout) * time.Second,
		JSON:             o.JSON,
		IgnoreDnD:        o.IgnoreDnD,
		Token:            notify.NewToken(),
	}
}

// trimPiped strips the line terminator a shell pipeline leaves behind.
func trimPiped(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
