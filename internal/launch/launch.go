package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// DefaultCancelGrace is how long an interrupted parent waits for its child
// to withdraw the notification and record a status.
const DefaultCancelGrace = 3 * time.Second

// errInterrupted marks a spawn cut short by the parent's context. The child
// was started and must not be started a second time.
var errInterrupted = errors.New("interrupted while waiting for the child")

// MarkerFlag is the hidden flag that marks a provisioned child.
const MarkerFlag = "relaunched"

// ErrRelaunch marks a relaunch that could not happen. Callers continue in the
// current process.
var ErrRelaunch = errors.New("relaunch failed")

// OperationClass decides how much launch-service supervision an invocation needs.
type OperationClass int

const (
	// Management covers list and remove without delivery.
	Management OperationClass = iota
	// Delivery covers anything that presents a notification or asks for authorization.
	Delivery
)

func (o OperationClass) String() string {
	if o == Delivery {
		return "delivery"
	}
	return "management"
}

// Strategy is how the provisioned binary is started.
type Strategy int

const (
	// ReplaceProcess execs the provisioned binary in place.
	ReplaceProcess Strategy = iota
	// SpawnAndWait runs the provisioned binary under the launch service and
	// forwards its output and exit status.
	SpawnAndWait
)

func (s Strategy) String() string {
	if s == SpawnAndWait {
		return "spawn-and-wait"
	}
	return "replace-process"
}

// StrategyFor returns the launch strategy for an operation class.
func StrategyFor(op OperationClass) Strategy {
	if op == Delivery {
		return SpawnAndWait
	}
	return ReplaceProcess
}

// Bundle is a materialized application container.
type Bundle struct {
	// Root is the container directory handed to the launch service.
	Root string
	// Executable is the binary inside the container.
	Executable string
}

// Provisioner materializes the application container for an identity.
type Provisioner interface {
	// Satisfied reports whether executable already runs from a managed context.
	Satisfied(executable string) bool
	// Materialize rebuilds the container for identity around a copy of executable.
	Materialize(identity, executable string) (Bundle, error)
	// Sign applies the platform trust signature to the container.
	Sign(ctx context.Context, b Bundle) error
}

// Replacer replaces the current process image. It only returns on failure.
type Replacer interface {
	Replace(path string, argv, env []string) error
}

// SpawnRequest describes a supervised child launch.
type SpawnRequest struct {
	Bundle Bundle
	// Args are the child's arguments, without the program name.
	Args []string
	// Stdout and Stderr are the files the child's streams are captured to.
	Stdout string
	Stderr string
}

// Spawner starts the provisioned binary under the launch service and waits
// for it to exit. A nil error means the child ran; its exit status is read
// from the session directory.
type Spawner interface {
	Spawn(ctx context.Context, req SpawnRequest) error
}

// Invocation is the current process's request to be relaunched.
type Invocation struct {
	// Identity is the sender identity embedded in the container.
	Identity string
	// Executable is the running binary.
	Executable string
	// Args are the original arguments, without the program name.
	Args []string
	// Operation selects the strategy.
	Operation OperationClass
	// PipedMessage is stdin content read by the parent. The launch service
	// cannot forward stdin, so it is passed as --message.
	PipedMessage string
}

// Relauncher runs the relaunch protocol.
type Relauncher struct {
	Provisioner Provisioner
	Spawner     Spawner
	Replacer    Replacer

	// Stdout and Stderr receive the child's replayed output.
	Stdout io.Writer
	Stderr io.Writer

	// CancelGrace bounds the wait for an interrupted child's exit status.
	CancelGrace time.Duration
}

// NewRelauncher creates a Relauncher using the platform spawner and replacer.
func NewRelauncher(p Provisioner) *Relauncher {
	return &Relauncher{
		Provisioner: p,
		Spawner:     NewSpawner(),
		Replacer:    NewReplacer(),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		CancelGrace: DefaultCancelGrace,
	}
}

// Ensure relaunches the invocation inside the provisioned container when the
// current context is not already managed.
//
// handled is true when a spawned child ran to completion; code is then its
// exit status and the caller must exit with it. When handled is false the
// caller continues in this process; a non-nil err (wrapping ErrRelaunch)
// explains why the relaunch was skipped. A delivery interrupted through ctx
// is handled with exit code 1: the child is told to stop through the
// session directory and the process is never relaunched a second time.
func (r *Relauncher) Ensure(ctx context.Context, inv Invocation) (code int, handled bool, err error) {
	if r.Provisioner.Satisfied(inv.Executable) {
		return 0, false, nil
	}

	bundle, err := r.Provisioner.Materialize(inv.Identity, inv.Executable)
	if err != nil {
		return 0, false, fmt.Errorf("%w: provisioning app container: %v", ErrRelaunch, err)
	}
	if err := r.Provisioner.Sign(ctx, bundle); err != nil {
		log.Printf("[relaunch] signing %s: %v (continuing unsigned)", bundle.Root, err)
	}

	strategy := StrategyFor(inv.Operation)
	log.Printf("[relaunch] %s operation, strategy %s, container %s", inv.Operation, strategy, bundle.Root)

	if strategy == ReplaceProcess {
		return 0, false, r.replace(bundle, inv)
	}

	code, err = r.spawn(ctx, bundle, inv)
	if err == nil {
		return code, true, nil
	}
	if errors.Is(err, errInterrupted) {
		log.Printf("[relaunch] %v", err)
		return code, true, nil
	}
	log.Printf("[relaunch] spawn failed: %v; replacing process instead", err)
	return 0, false, r.replace(bundle, inv)
}

func (r *Relauncher) replace(bundle Bundle, inv Invocation) error {
	argv := append([]string{bundle.Executable}, childArgs(inv)...)
	if err := r.Replacer.Replace(bundle.Executable, argv, os.Environ()); err != nil {
		return fmt.Errorf("%w: replacing process: %v", ErrRelaunch, err)
	}
	return nil
}

func (r *Relauncher) spawn(ctx context.Context, bundle Bundle, inv Invocation) (int, error) {
	session, err := NewSession()
	if err != nil {
		return 0, err
	}
	defer session.Remove()

	args := append(childArgs(inv), "--"+MarkerFlag, session.Dir)
	req := SpawnRequest{
		Bundle: bundle,
		Args:   args,
		Stdout: session.StdoutPath(),
		Stderr: session.StderrPath(),
	}
	if err := r.Spawner.Spawn(ctx, req); err != nil {
		if ctx.Err() != nil {
			return r.interrupt(session), fmt.Errorf("%w: %v", errInterrupted, err)
		}
		return 0, err
	}

	// Streams are replayed in full before the status is read so the caller
	// can exit right after Ensure returns.
	replay(r.Stdout, session.StdoutPath())
	replay(r.Stderr, session.StderrPath())

	code, err := ReadStatus(session.Dir)
	if err != nil {
		log.Printf("[relaunch] child left no exit status: %v", err)
		return 1, nil
	}
	return code, nil
}

// interrupt asks the child to stop and waits up to CancelGrace for its exit
// status. The status is 1 when the child does not answer in time.
func (r *Relauncher) interrupt(session *Session) int {
	if err := RequestCancel(session.Dir); err != nil {
		log.Printf("[relaunch] forwarding interrupt: %v", err)
		return 1
	}
	code, err := AwaitStatus(session.Dir, r.CancelGrace)
	if err != nil {
		log.Printf("[relaunch] child did not stop: %v", err)
		return 1
	}
	replay(r.Stderr, session.StderrPath())
	if code == 0 {
		// The run was interrupted even if the child won the race.
		return 1
	}
	return code
}

func childArgs(inv Invocation) []string {
	args := append([]string(nil), inv.Args...)
	if inv.PipedMessage != "" {
		args = append(args, "--message", inv.PipedMessage)
	}
	return args
}

func replay(w io.Writer, path string) {
	if w == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[relaunch] replaying %s: %v", path, err)
		}
		return
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		log.Printf("[relaunch] replaying %s: %v", path, err)
	}
}
