// Package tasks is the static catalog of segmentation tasks the model
// ships: nine numeric tasks plus the composite "all" task that fans out
// to them in a fixed order.
package tasks
