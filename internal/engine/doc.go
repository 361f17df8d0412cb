// Package engine orchestrates a full segmentation run: it validates the
// requested task and targets, stages the input volume into a locked
// workspace, drives the external model once per subtask, reconciles the
// resulting label maps into terminology-tagged containers, and records the
// run in the history journal.
package engine
