// Package labelspace loads the per-task label dictionaries that map
// integer label values in a task's output volume to structure names, and
// applies user-selected target subsets to them.
//
// Label value 0 is the background sentinel: it stays in the raw mapping
// (color tables are sized off the maximum value) but never appears in
// target candidate lists.
package labelspace
