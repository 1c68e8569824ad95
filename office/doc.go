// Package office extracts text, images and tables from Word, PowerPoint
// and Excel documents.
//
// Word and PowerPoint files are read directly from their Office Open XML
// packages. Excel workbooks are read with excelize.
package office
