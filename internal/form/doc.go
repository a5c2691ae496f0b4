// Package form implements the field value store for one document being
// edited: a mapping of dot-delimited field paths to value and validity
// state, mutated only through dispatched update actions. The store is
// shared by every field binding of a document and by the submit path, so
// all access is serialized through one mutex.
package form
