// Package ocr extracts text from screenshots by piping a PNG rendering of the
// frame through the tesseract command line tool.
package ocr
