// Package html provides a Normaliser implementation for HTML documents.
// It parses the DOM with goquery and renders readable text, dropping
// scripts, styles and other non-content elements.
package html
