// Package health confirms that deployed services accept HTTP requests.
//
// A Prober sends one request; a Poller repeats probes with a fixed delay
// until one succeeds or the attempt budget runs out. Targets are polled
// one at a time by the caller; nothing here runs concurrently.
package health
