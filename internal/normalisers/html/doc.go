// Package html provides a Normaliser for HTML source files. It parses the
// page with goquery and keeps the text of the main content area.
package html
