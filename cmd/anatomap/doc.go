// Command anatomap segments whole-body CT volumes with an external model
// and reconciles the output into terminology-tagged segmentation
// containers.
package main
