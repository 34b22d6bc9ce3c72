// Package export renders markdown files to html, markdown, or plain text.
package export
