// Package chunker splits page text into overlapping windows sized in
// approximate tokens. Windows prefer to end on a sentence or paragraph
// boundary and short fragments are dropped.
package chunker
