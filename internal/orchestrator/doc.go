// Package orchestrator runs the deployment as an ordered list of named
// steps.
//
// A Runner executes steps strictly in sequence. Each step carries a
// Policy that decides what its failure means: Abort halts the run, Warn
// logs and continues, Ignore continues silently. The Deployer builds the
// nine deployment steps on top of the Runner; all of its per-run state
// lives in a deployment value created for one Run call.
package orchestrator
