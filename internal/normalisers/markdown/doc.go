// Package markdown provides a Normaliser for Markdown source files built on
// the goldmark parser.
package markdown
