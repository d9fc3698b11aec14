// Package logs tails the daemon log file for `glimpse logs`.
//
// A negative offset returns the last N lines; a non-negative offset resumes
// from a previous read and, in follow mode, polls until new lines arrive or
// the wait expires.
package logs
