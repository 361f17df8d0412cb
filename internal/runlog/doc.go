// Package runlog persists a journal of segmentation runs in SQLite so
// the history command can show what was produced, when, and how it ended.
package runlog
