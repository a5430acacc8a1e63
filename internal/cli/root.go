// alerter - notifications for the command line that wait for an answer
// Author: Ariel Frischer
// Source: https://github.com/ariel-frischer/alerter

// Package cli provides the Cobra-based command line for alerter. A single
// root command delivers a notification and prints how the user answered it,
// or lists and removes delivered notifications by group.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariel-frischer/alerter/internal/build"
	"github.com/ariel-frischer/alerter/internal/cli/shared"
	"github.com/ariel-frischer/alerter/internal/launch"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerter",
		Short: "Send a notification and wait for the answer",
		Long: `alerter - notifications for the command line that wait for an answer

Delivers one notification, waits until the user dismisses it, clicks it,
presses an action button or replies, then prints the outcome and exits.

Output (plain text):
  <label>           the pressed action, the reply text or the close label
  @CLOSED           closed without a close label
  @TIMEOUT          --timeout elapsed first
  @CONTENTCLICKED   the notification body was clicked
  @ACTIONCLICKED    an action without a label was pressed
  @NONE             the platform reported an unknown interaction

With --json the outcome is an object with activationType, activationAt and,
when known, activationValue, activationValueIndex and deliveredAt.

Exit codes: 0 success, 1 failure or interrupted, 2 invalid arguments,
3 delivery rejected, 4 notifications not allowed for the sender.

Source: https://github.com/ariel-frischer/alerter`,
		Example: `  # Ask a question and branch on the answer
  answer=$(alerter --message "Deploy finished" --actions "Open,Later" --timeout 30)

  # Pipe the body in, replace the previous build notification
  make 2>&1 | tail -1 | alerter --title Build --group build

  # Ask for free text as JSON
  alerter --message "Commit message?" --reply "Type here" --json

  # Manage delivered notifications
  alerter --list ALL
  alerter --remove build`,
		Args:          cobra.NoArgs,
		Version:       build.Summary(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.run,
	}
	cmd.SetVersionTemplate("alerter {{.Version}}\n")
	registerFlags(cmd, &a.opts)
	return cmd
}

// Execute runs the root command and returns the process exit code.
// Interrupt and terminate signals cancel the run: the in-flight notification
// is withdrawn and the exit code is 1.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newApp(os.Args[1:]).execute(ctx)
}

func (a *app) execute(ctx context.Context) int {
	a.printer = shared.NewPrinter(a.stderr)

	cmd := newRootCmd(a)
	cmd.SetArgs(a.args)
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	err := cmd.ExecuteContext(ctx)
	code := shared.ExitCode(err)
	if err != nil && !a.started {
		// Rejected by flag parsing or flag group checks.
		code = shared.ExitInvalidArguments
	}
	if err != nil && !shared.IsSilent(err) {
		a.printer.Error(err)
	}

	if a.opts.Relaunched != "" {
		if rerr := launch.RecordStatus(a.opts.Relaunched, code); rerr != nil {
			a.printer.Warnf("recording exit status: %v", rerr)
		}
	}
	return code
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
