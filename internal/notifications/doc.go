// Package notifications posts daemon events to an ntfy topic.
//
// The ntfy implementation is used when notifications.ntfy_topic is set;
// otherwise NewService returns a no-op so callers never branch on
// configuration.
package notifications
