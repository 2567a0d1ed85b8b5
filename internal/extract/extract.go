package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	mimePDF  = "application/pdf"
	mimeDOC  = "application/msword"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	// ErrUnsupportedType is returned for declared MIME types the extractor cannot handle.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyInput is returned for zero-byte payloads.
	ErrEmptyInput = errors.New("file is empty")
	// ErrNoExtractableText is returned when a document yields no usable text:
	// the parser failed on it or produced only whitespace, e.g. scanned,
	// protected or corrupt files.
	ErrNoExtractableText = errors.New("no extractable text")
)

// ExtractText pulls plain text from an uploaded document.
// PDF extraction uses github.com/ledongthuc/pdf; Word documents use
// github.com/nguyenthenguyen/docx. The input is not retained.
func ExtractText(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmptyInput
	}

	var (
		text string
		err  error
	)
	switch normalizeMimeType(mimeType, fileName, data) {
	case mimePDF:
		text, err = extractPDF(data)
	case mimeDOCX, mimeDOC:
		// Legacy .doc uploads are frequently OOXML with a stale extension,
		// so both declared Word types go through the same path.
		text, err = extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoExtractableText
	}
	return text, nil
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf library panics on some malformed files instead of returning
	// an error; surface those as the same typed failure.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: pdf parse: %v", ErrNoExtractableText, r)
		}
	}()

	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf parse: %v", ErrNoExtractableText, err)
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf text: %v", ErrNoExtractableText, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: pdf read: %v", ErrNoExtractableText, err)
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	reader, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if isLegacyDocBinary(data) {
			return "", fmt.Errorf("%w: legacy .doc binary, convert to .docx or PDF", ErrUnsupportedType)
		}
		return "", fmt.Errorf("%w: docx parse: %v", ErrNoExtractableText, err)
	}
	defer reader.Close()
	return stripDocxXML(reader.Editable().GetContent()), nil
}

// isLegacyDocBinary detects the OLE compound-file magic that pre-OOXML Word
// documents start with.
func isLegacyDocBinary(data []byte) bool {
	magic := []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	return len(data) >= len(magic) && bytes.Equal(data[:len(magic)], magic)
}

// stripDocxXML flattens WordprocessingML into plain text, keeping paragraph
// and line breaks as newlines.
func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if last := buf.Len(); last > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func normalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean != "application/zip" && clean != "application/octet-stream" {
		return clean
	}

	if isOOXMLWordZip(data) {
		return mimeDOCX
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".docx":
		return mimeDOCX
	case ".doc":
		return mimeDOC
	case ".pdf":
		return mimePDF
	default:
		return clean
	}
}

func isOOXMLWordZip(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
