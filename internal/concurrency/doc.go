// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Event loops for hioload-pipeline. Each loop owns one goroutine locked to
// one OS thread and runs submitted tasks one at a time in submission order.
// Loops can optionally be pinned to a CPU on Linux.
package concurrency
