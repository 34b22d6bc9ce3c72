// Package search finds terms inside a single document.
//
// A query is a list of terms. AND terms (the default) must all occur, NOT
// terms must not occur, and an OR term groups words of which at least one
// must occur. Matching is case-insensitive using Unicode case folding.
// When the query is satisfied the result lists every line containing a
// matched word, with rune offsets of each occurrence.
package search
