// Package types defines the public diagnostic types shared between the
// tracking core and its embedders: the corruption report produced when a
// block fails an integrity check, and the sink that receives it.
//
// These live in their own package so that both the internal header layout
// code and the public tracker facade can use them without import cycles.
//
// This package has no dependencies beyond the standard library.
package types
