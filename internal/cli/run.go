package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/ariel-frischer/alerter/internal/cli/shared"
	"github.com/ariel-frischer/alerter/internal/config"
	"github.com/ariel-frischer/alerter/internal/identity"
	"github.com/ariel-frischer/alerter/internal/launch"
	"github.com/ariel-frischer/alerter/internal/notify"
	"github.com/ariel-frischer/alerter/internal/output"
	"github.com/ariel-frischer/alerter/internal/progress"
	"github.com/ariel-frischer/alerter/internal/schedule"
	"github.com/spf13/cobra"
)

const (
	// cleanupTimeout bounds the withdrawal attempted on an interrupted run.
	cleanupTimeout = 2 * time.Second
	// cancelPoll is how often a relaunched child checks for its parent's
	// cancel request.
	cancelPoll = 100 * time.Millisecond
)

// ensurer is the relaunch protocol as the entry point sees it.
type ensurer interface {
	Ensure(ctx context.Context, inv launch.Invocation) (code int, handled bool, err error)
}

// app carries one invocation's collaborators. Tests replace the platform
// facing ones.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// stdinIsTerminal reports whether stdin is interactive.
	stdinIsTerminal func() bool
	// args are the original arguments, forwarded on relaunch.
	args       []string
	executable func() (string, error)
	now        func() time.Time

	loadConfig    func(path string) (*config.Configuration, error)
	newService    func(notify.ServiceConfig) (notify.Service, error)
	newRelauncher func(cfg *config.Configuration) ensurer
	indicator     func() *progress.Indicator

	opts    options
	cfg     *config.Configuration
	printer *shared.Printer

	// started is set once flag parsing and flag group checks have passed.
	started bool
}

func newApp(args []string) *app {
	return &app{
		stdin:           os.Stdin,
		stdout:          os.Stdout,
		stderr:          os.Stderr,
		stdinIsTerminal: stdinIsTerminal,
		args:            args,
		executable:      os.Executable,
		now:             time.Now,
		loadConfig:      config.Load,
		newService:      notify.NewService,
		newRelauncher: func(cfg *config.Configuration) ensurer {
			return launch.NewRelauncher(launch.NewAppBundleProvisioner(cfg.AppDir))
		},
		indicator: func() *progress.Indicator {
			return progress.NewIndicator(os.Stderr, progress.DetectTerminalCapabilities(os.Stderr))
		},
	}
}

// run is the root command's RunE.
func (a *app) run(cmd *cobra.Command, _ []string) error {
	a.started = true
	ctx := cmd.Context()
	flags := cmd.Flags()

	cfg, err := a.loadConfig(a.opts.ConfigPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.opts.applyConfig(flags, cfg)
	a.configureLogging()

	if !flags.Changed("message") && !flags.Changed("remove") && !flags.Changed("list") && !a.stdinIsTerminal() {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		a.opts.Message = trimPiped(string(data))
		a.opts.piped = a.opts.Message != ""
	}

	op, err := a.opts.operation(flags)
	if err != nil {
		return err
	}

	// A provisioned child trusts the validation its parent already did.
	var req notify.Request
	var until time.Time
	if op == opDeliver {
		req = a.opts.request()
		if a.opts.Relaunched == "" {
			if err := req.Validate(); err != nil {
				return err
			}
		}
		until, err = schedule.Resolve(time.Duration(a.opts.Delay)*time.Second, a.opts.At, a.now())
		if err != nil {
			return err
		}
	}

	if a.opts.Relaunched != "" {
		var stop context.CancelFunc
		ctx, stop = launch.WatchCancel(ctx, a.opts.Relaunched, cancelPoll)
		defer stop()
	}

	if code, handled := a.relaunch(ctx, op); handled {
		if code != shared.ExitSuccess {
			return shared.NewExitError(code)
		}
		return nil
	}

	if identity.Impersonate(a.opts.Sender) {
		log.Printf("[notify] sending as %s", a.opts.Sender)
	}

	svc, err := a.newService(notify.ServiceConfig{StateDir: cfg.StateDir})
	if err != nil {
		return err
	}
	defer svc.Close()

	switch op {
	case opList:
		return a.list(ctx, svc, a.opts.List)
	case opRemove:
		return a.remove(ctx, svc, a.opts.Remove)
	default:
		return a.deliver(ctx, svc, req, until)
	}
}

func (a *app) configureLogging() {
	if a.opts.Debug {
		log.SetOutput(a.stderr)
		return
	}
	log.SetOutput(io.Discard)
}

// relaunch runs the relaunch protocol unless this process is already the
// provisioned child or relaunching is disabled. A failed relaunch degrades
// to running here.
func (a *app) relaunch(ctx context.Context, op operation) (code int, handled bool) {
	if a.opts.Relaunched != "" || !a.cfg.Relaunch {
		return 0, false
	}
	exe, err := a.executable()
	if err != nil {
		log.Printf("[relaunch] locating executable: %v", err)
		return 0, false
	}

	inv := launch.Invocation{
		Identity:   a.opts.Sender,
		Executable: exe,
		Args:       a.args,
		Operation:  op.class(),
	}
	if a.opts.piped {
		inv.PipedMessage = a.opts.Message
	}

	code, handled, err = a.newRelauncher(a.cfg).Ensure(ctx, inv)
	if err != nil {
		log.Printf("[relaunch] %v; continuing in this process", err)
	}
	return code, handled
}

func (a *app) list(ctx context.Context, svc notify.Service, group string) error {
	matches, err := notify.List(ctx, svc, group)
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, output.Summaries(matches))
	return nil
}

func (a *app) remove(ctx context.Context, svc notify.Service, group string) error {
	n, err := notify.Remove(ctx, svc, group)
	if err != nil {
		return err
	}
	log.Printf("[notify] removed %d notification(s) for %q", n, group)
	return nil
}

// deliver waits for the scheduled time, makes sure the sender may notify,
// then runs the coordinator to its single terminal event and prints it.
func (a *app) deliver(ctx context.Context, svc notify.Service, req notify.Request, until time.Time) error {
	if until.After(a.now()) {
		ind := a.indicator()
		stop := ind.Start(fmt.Sprintf("Delivering at %s", until.Format(schedule.DateLayout)))
		err := schedule.Wait(ctx, until)
		stop()
		if err != nil {
			ind.Fail()
			log.Printf("[notify] scheduled delivery interrupted: %v", err)
			return shared.NewExitError(shared.ExitFailure)
		}
		ind.Complete()
	}

	var prompt *progress.Indicator
	err := notify.Authorize(ctx, svc, func() func() {
		prompt = a.indicator()
		return prompt.Start("Waiting for notification permission")
	})
	if prompt != nil {
		if err != nil {
			prompt.Fail()
		} else {
			prompt.Complete()
		}
	}
	if err != nil {
		return err
	}

	coord := notify.NewCoordinator(svc,
		notify.WithPollInterval(a.cfg.PollInterval),
		notify.WithWarnings(a.printer.Warn),
	)
	ev, err := a.await(ctx, svc, coord, req)
	if err != nil {
		cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if coord.Cleanup(cctx) {
			log.Printf("[notify] withdrew %s after %v", req.Token, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return shared.NewExitError(shared.ExitFailure)
		}
		return err
	}

	fmt.Fprint(a.stdout, output.Event(ev, req.JSON))
	return nil
}

// await runs the coordinator to the terminal event. Services with a
// main-thread event loop get the calling goroutine while the coordinator
// runs elsewhere.
func (a *app) await(ctx context.Context, svc notify.Service, coord *notify.Coordinator, req notify.Request) (notify.Event, error) {
	looper, ok := svc.(notify.MainLooper)
	if !ok {
		return coord.Run(ctx, req)
	}

	var (
		ev   notify.Event
		err  error
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		ev, err = coord.Run(ctx, req)
		looper.StopMainLoop()
	}()
	looper.RunMainLoop()
	<-done
	return ev, err
}
