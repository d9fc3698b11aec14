// Package daemonctl launches, stops and restarts the background glimpse
// daemon on behalf of the CLI. Liveness is judged by the control socket; the
// pid file written by the daemon is the fallback for signalling it.
package daemonctl
