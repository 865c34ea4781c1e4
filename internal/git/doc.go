// Package git reads commit history to date notes.
//
// A note's last-modification time is taken from the most recent commit that
// touched it. Lookups are cached per History, so one History should be
// opened per build.
package git
