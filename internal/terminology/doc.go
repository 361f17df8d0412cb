// Package terminology maps model structure names to standardized clinical
// terminology.
//
// A Service holds one or more terminology contexts loaded from definition
// files (the model's own context plus, optionally, the DICOM master list).
// A Catalog is built from a mapping CSV and synthesizes, per structure, a
// serialized terminology entry string; display labels and colors are
// resolved lazily against the Service and cached.
//
// Lookups never fail for callers that only need a name: DisplayLabel falls
// back to the raw structure name, and StructureName returns its input when
// no catalog entry matches.
package terminology
