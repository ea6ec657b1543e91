// Package extract provides PDF text extraction with page attribution.
//
// The Extractor type reads a PDF and returns cleaned per-page text, so
// downstream chunking can record which page each chunk came from. Text
// cleaning strips the noise common to scanned tax documents: null
// characters, byte-order marks, bare page numbers, and fragment lines.
package extract
