// Package preflight provides readiness checks for the directories and
// database that ludex depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to serve when a check
//     fails, so a misconfigured library root surfaces before the first scan.
//   - The CLI "ludex status" command uses individual check functions to
//     display health alongside daemon state.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
