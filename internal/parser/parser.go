package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"

	"commercial-rag/internal/models"
)

// LoadDocuments walks root recursively and extracts text from every file
// with a supported extension. A file that fails to parse is logged and
// skipped; files with no text are dropped.
func LoadDocuments(root string) []models.SourceDocument {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		log.Warn().Err(err).Str("root", root).Msg("Invalid documents folder")
		return nil
	}
	if _, err := os.Stat(absRoot); err != nil {
		log.Warn().Err(err).Str("root", absRoot).Msg("Documents folder does not exist")
		return nil
	}

	files := findFiles(absRoot)
	log.Info().Msgf("Found %d documents in %s", len(files), absRoot)

	var docs []models.SourceDocument
	for _, path := range files {
		doc, err := ParseDocument(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Error loading file")
			continue
		}
		if strings.TrimSpace(doc.Content) == "" {
			log.Debug().Str("file", path).Msg("Skipping file without text")
			continue
		}
		docs = append(docs, doc)
	}

	log.Info().Msgf("Successfully loaded %d documents", len(docs))
	return docs
}

func findFiles(root string) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable path")
			return nil
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if models.SupportedExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// ParseDocument extracts the text of a single file. Panics raised by the
// PDF decoder on malformed input are returned as errors.
func ParseDocument(path string) (doc models.SourceDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse %s: %v", path, r)
		}
	}()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return doc, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return doc, err
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	doc = models.SourceDocument{
		ID:       models.DocumentID(absPath),
		Filename: filepath.Base(absPath),
		Path:     absPath,
		Size:     info.Size(),
		Format:   ext,
	}

	switch ext {
	case ".pdf":
		doc.Content, doc.Pages, err = parsePDF(absPath, info.Size())
	case ".docx":
		doc.Content, err = parseDOCX(absPath)
	case ".txt":
		doc.Content, err = parseText(absPath)
	case ".md":
		doc.Content, err = parseText(absPath)
		if err == nil {
			doc.Title = markdownTitle([]byte(doc.Content))
		}
	default:
		err = fmt.Errorf("unsupported file format: %s", ext)
	}
	return doc, err
}

func parsePDF(filePath string, size int64) (string, int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	reader, err := pdf.NewReader(f, size)
	if err != nil {
		return "", 0, err
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		if pageText != "" {
			text.WriteString(pageText)
			text.WriteString("\n")
		}
	}
	return text.String(), numPages, nil
}

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	paragraphs, err := docxParagraphs(r.Editable().GetContent())
	if err != nil {
		return "", err
	}
	return strings.Join(paragraphs, "\n"), nil
}

// docxParagraphs returns the text of each w:p element of a WordprocessingML
// document body.
func docxParagraphs(content string) ([]string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode document xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return paragraphs, nil
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// ListDocuments returns the regular files directly inside dir, sorted by
// name. A missing directory yields an empty list.
func ListDocuments(dir string) ([]models.DocumentInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []models.DocumentInfo{}, nil
	}
	if err != nil {
		return nil, err
	}

	docs := make([]models.DocumentInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		docs = append(docs, models.DocumentInfo{
			Filename:  e.Name(),
			SizeBytes: info.Size(),
			Modified:  info.ModTime(),
			Extension: strings.ToLower(filepath.Ext(e.Name())),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	return docs, nil
}
