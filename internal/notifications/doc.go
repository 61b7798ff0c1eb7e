// Package notifications pushes batch outcomes to ntfy.
//
// The topic URL comes from the [notifications] section of config.toml. When
// it is empty NewService returns a no-op implementation so the batch runner
// can notify unconditionally.
package notifications
