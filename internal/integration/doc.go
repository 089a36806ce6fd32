// Package integration holds end-to-end tests that run real worker processes
// behind the scheduler and the HTTP API.
package integration
