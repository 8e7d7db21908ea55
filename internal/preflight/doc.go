// Package preflight provides readiness checks for the configuration, local
// directories and upstream services that animesync depends on.
//
// These checks run in two contexts:
//   - The CLI "animesync check" command runs RunAll and prints every result.
//   - The run workflow calls CheckDirectoryAccess on the state directory before
//     taking the run lock.
//
// Network checks use a short timeout and a single attempt.
package preflight
