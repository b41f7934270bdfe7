package rag

import (
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// ExtractText reads a knowledge document and returns its plain text. HTML is
// reduced to readable article text; everything else is treated as plain text.
// The reader is capped at maxBytes to keep pathological uploads bounded.
func ExtractText(r io.Reader, filename string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	limited := io.LimitReader(r, maxBytes)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		article, err := readability.FromReader(limited, &url.URL{Path: filename})
		if err != nil {
			return "", fmt.Errorf("extract html text: %w", err)
		}
		return article.TextContent, nil
	default:
		data, err := io.ReadAll(limited)
		if err != nil {
			return "", fmt.Errorf("read document: %w", err)
		}
		return string(data), nil
	}
}
