// Package api queries the /health endpoint of a running inkwell backend.
//
// Health makes a single request. WaitReady polls until the backend answers,
// which lets scripts start inkwelld serve and block until it is usable.
// The inkwelld status command is built on both.
package api
