// Package tabular provides a Normaliser for CSV, TSV and XLSX files.
//
// Tables are not chunked row by row. Each table (or worksheet) is rendered
// as a descriptive text block: shape, inferred column types, a sample of
// the first rows and summary statistics for numeric columns. Retrieval then
// answers questions about the data set as a whole.
package tabular
