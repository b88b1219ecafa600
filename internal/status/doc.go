// Package status holds the per-user presence actors: a durable status
// string and last-seen stamp addressed by user id.
package status
