// Package docload reads ingestion inputs: newline-delimited JSON record
// files and plain documents (txt, markdown, PDF).
package docload

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"imaging-rag/internal/domain"
)

// SkippedLine reports one JSONL line that could not be decoded.
type SkippedLine struct {
	Line int
	Err  error
}

// ReadJSONL decodes one record per line. Blank lines are ignored; malformed
// lines do not fail the batch but come back as explicit skip results so the
// caller can log them.
func ReadJSONL(path string) ([]domain.Record, []SkippedLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open records file: %w", err)
	}
	defer f.Close()

	var records []domain.Record
	var skipped []SkippedLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec domain.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped = append(skipped, SkippedLine{Line: lineNum, Err: err})
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read records file: %w", err)
	}
	return records, skipped, nil
}

// ExtractText returns the plain text of a document file. PDFs go through
// the pdf library; everything else is read as-is.
func ExtractText(path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) == ".pdf" {
		return extractPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
