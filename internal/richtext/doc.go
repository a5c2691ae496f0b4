// Package richtext implements the structured-document model used by rich
// text fields: an ordered tree of elements and text leaves, addressed by
// index paths from the root, with all edits expressed as pure transform
// operations that return a new tree and an updated selection.
//
// The tree obeys one structural invariant: every element has at least one
// child. Void elements (uploads, relationships) carry a single empty text
// placeholder and never accept cursor placement inside their content.
package richtext
