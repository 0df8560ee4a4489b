// Package server is the host-facing surface of rapid: a program builds
// a Config, registers routes, and calls Run with a context whose
// cancellation triggers graceful shutdown.
//
// Config carries everything the host supplies (bind address, worker
// count, payload ceiling, timeouts, cache sizing, upload directory
// name); at Run time it is compiled into one immutable environment —
// route table, byte cache, limits — shared by reference among all
// worker goroutines for the lifetime of the Run call.
package server
