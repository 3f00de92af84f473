package loader

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"

	"ragchat/internal/domain"
)

// MaxFileSize caps text extraction at 50MB per file.
const MaxFileSize = 50 * 1024 * 1024

// LoadDir reads every supported file in dir and returns one document per
// file, tagged with the file name as source. Unsupported extensions are
// skipped, not errors.
func LoadDir(dir string, logger *log.Logger) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read documents dir: %w", err)
	}

	var docs []domain.Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		text, err := Extract(path)
		if err != nil {
			if err == errUnsupported {
				logger.Printf("skipping unsupported file: %s", e.Name())
				continue
			}
			return nil, fmt.Errorf("extract %s: %w", e.Name(), err)
		}
		if strings.TrimSpace(text) == "" {
			logger.Printf("skipping empty file: %s", e.Name())
			continue
		}
		docs = append(docs, domain.Document{Source: e.Name(), Content: text})
	}
	return docs, nil
}

var errUnsupported = fmt.Errorf("unsupported file type")

// Extract returns the plain text content of a single file, dispatching on
// its extension.
func Extract(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file exceeds size limit of 50MB")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return extractText(path)
	case ".json":
		return extractJSON(path)
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDOCX(path)
	default:
		return "", errUnsupported
	}
}

func extractText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// extractJSON re-indents the document so nested values land on their own
// lines, mirroring how the corpus stores structured support data.
func extractJSON(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("invalid json: %w", err)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

func extractPDF(path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	b, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractDOCX unzips the container and walks word/document.xml, emitting a
// newline per paragraph element.
func extractDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX zip: %w", err)
	}
	defer r.Close()

	var documentXML *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			documentXML = f
			break
		}
	}
	if documentXML == nil {
		return "", fmt.Errorf("invalid docx: missing word/document.xml")
	}

	rc, err := documentXML.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var sb strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				sb.WriteString("\n")
			}
			if t.Name.Local == "tab" {
				sb.WriteString("\t")
			}
		case xml.CharData:
			sb.Write(t)
		}
	}
	return sb.String(), nil
}
