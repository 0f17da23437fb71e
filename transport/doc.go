// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// net.Conn backed transports for hioload-pipeline channels and a TCP
// server that creates one channel per accepted connection.
package transport
