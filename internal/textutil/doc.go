// Package textutil sanitizes names for safe filesystem use. Container
// names derive from user-supplied volume filenames and task titles, so
// sidecar paths are scrubbed before writing.
package textutil
