// Package bodyseg wraps the external whole-body CT segmentation
// executable. The model is an opaque black box: given an input volume and
// a task id it writes label-map files into an output directory. This
// package only owns the command-line contract and output streaming.
package bodyseg
