// Package normalisers groups the Normaliser implementations used by the
// corpus retriever. Each normaliser turns one family of source files into
// plain text, selected by file extension.
package normalisers
