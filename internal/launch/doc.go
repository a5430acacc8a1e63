// Package launch makes sure the process runs inside a launch context the
// platform recognises as an installed application, relaunching itself when
// it does not.
//
// A Provisioner materializes a minimal application container for the sender
// identity and signs it. The Relauncher then picks a strategy from the
// operation class:
//
//   - Management (list, remove): replace the process image with the
//     container's binary. Same PID, nothing to forward.
//   - Delivery: spawn the container through the launch service, wait for it,
//     replay its captured stdout and stderr, and exit with its status.
//
// The spawned child receives the hidden --relaunched flag naming a session
// directory. It skips provisioning and input validation and records its exit
// status there, since the launch service does not report it.
package launch
