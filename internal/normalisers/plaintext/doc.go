// Package plaintext provides the Normaliser for plain text and other
// text-based source files.
package plaintext
