package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"edulearn-backend/internal/models"
)

// wordsPerPage is the page size used for formats without real pages.
const wordsPerPage = 500

// Extraction is the text layer of an uploaded file.
type Extraction struct {
	Text      string
	PageCount int
	Pages     []string // one entry per page, blank pages included
}

type FileExtractService struct{}

func NewFileExtractService() *FileExtractService {
	return &FileExtractService{}
}

// Extract reads the text of the file at path. Images yield an empty extraction;
// their text comes from a vision request instead.
func (s *FileExtractService) Extract(path, fileType string) (*Extraction, error) {
	switch fileType {
	case models.FileTypePDF:
		return s.extractPDF(path)
	case models.FileTypeDOCX:
		text, err := s.extractDOCX(path)
		if err != nil {
			return nil, err
		}
		return paginateByWords(text), nil
	case models.FileTypeText:
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return paginateByWords(normalizeExtractedText(string(b))), nil
	case models.FileTypeImage:
		return &Extraction{}, nil
	default:
		return nil, fmt.Errorf("unsupported file type for text extraction: %s", fileType)
	}
}

func (s *FileExtractService) extractPDF(path string) (*Extraction, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	totalPage := reader.NumPage()
	pages := make([]string, 0, totalPage)
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, normalizeExtractedText(content))
	}

	return &Extraction{
		Text:      normalizeExtractedText(strings.Join(pages, "\n\n")),
		PageCount: totalPage,
		Pages:     pages,
	}, nil
}

func (s *FileExtractService) extractDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var documentXML []byte
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", err
			}
			documentXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", err
			}
			break
		}
	}

	if len(documentXML) == 0 {
		return "", fmt.Errorf("docx document.xml not found")
	}

	return normalizeExtractedText(stripDOCXML(documentXML)), nil
}

// paginateByWords splits flowing text into pages of wordsPerPage words.
func paginateByWords(text string) *Extraction {
	words := strings.Fields(text)
	if len(words) == 0 {
		return &Extraction{Text: text, PageCount: 1, Pages: []string{""}}
	}

	var pages []string
	for start := 0; start < len(words); start += wordsPerPage {
		end := min(start+wordsPerPage, len(words))
		pages = append(pages, strings.Join(words[start:end], " "))
	}
	return &Extraction{Text: text, PageCount: len(pages), Pages: pages}
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func stripDOCXML(src []byte) string {
	s := string(src)

	// DOCX paragraphs and line breaks
	s = strings.ReplaceAll(s, "</w:p>", "\n")
	s = strings.ReplaceAll(s, "<w:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:br />", "\n")
	s = strings.ReplaceAll(s, "<w:tab/>", "\t")

	s = xmlTagPattern.ReplaceAllString(s, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
	)
	return replacer.Replace(s)
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}

// allowedUploads maps sniffed MIME types to document file types.
var allowedUploads = map[string]string{
	"application/pdf": models.FileTypePDF,
	"image/jpeg":      models.FileTypeImage,
	"image/png":       models.FileTypeImage,
	"image/gif":       models.FileTypeImage,
	"image/webp":      models.FileTypeImage,
}

// DetectFileType classifies an upload from its sniffed MIME type and file name.
// DOCX sniffs as a zip archive and plain text as text/plain, so both also need
// the matching extension. It returns "" for unsupported files.
func DetectFileType(mimeType, filename string) string {
	mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	ext := strings.ToLower(filepath.Ext(filename))

	if t, ok := allowedUploads[mimeType]; ok {
		return t
	}
	switch {
	case ext == ".docx" && (mimeType == "application/zip" || mimeType == "application/octet-stream"):
		return models.FileTypeDOCX
	case ext == ".txt" && mimeType == "text/plain":
		return models.FileTypeText
	}
	return ""
}

// ImageMIMEType returns the MIME type to send with an image upload.
func ImageMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
