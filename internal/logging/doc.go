// Package logging provides structured JSON logging with size-based file
// rotation. Logs go to a file under the quarry data directory and optionally
// mirror to stderr.
package logging
