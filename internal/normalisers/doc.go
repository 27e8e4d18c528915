// Package normalisers provides implementations of the Normaliser interface
// for the supported document formats. Each normaliser extracts text
// sections from a family of file extensions:
//
//   - pdf: one section per page (pdftotext), tables flattened to rows
//   - docx: paragraphs and tables in body order
//   - tabular: CSV and XLSX rendered as descriptive text per sheet
//   - html: visible DOM text
//   - markdown: formatting stripped, one section per top-level heading
//   - plaintext: fallback for .txt and text/* content
//
// Normalisers are registered with the Registry at startup.
package normalisers
