package parser

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDocuments(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pricing.txt"), "Enterprise plan costs 100 USD per seat.")
	writeFile(t, filepath.Join(root, "guides", "onboarding.md"), "# Onboarding Guide\n\nStep one: sign the contract.\n")
	writeFile(t, filepath.Join(root, "guides", "nested", "UPPER.TXT"), "Upper case extension is accepted.")
	writeFile(t, filepath.Join(root, "empty.txt"), "   \n\t ")
	writeFile(t, filepath.Join(root, "broken.pdf"), "this is not a pdf")
	writeFile(t, filepath.Join(root, "broken.docx"), "this is not a zip archive")
	writeFile(t, filepath.Join(root, "notes.csv"), "a,b,c")

	docs := LoadDocuments(root)
	require.Len(t, docs, 3)

	byName := map[string]int{}
	for i, d := range docs {
		byName[d.Filename] = i
	}
	require.Contains(t, byName, "pricing.txt")
	require.Contains(t, byName, "onboarding.md")
	require.Contains(t, byName, "UPPER.TXT")

	txt := docs[byName["pricing.txt"]]
	assert.Equal(t, "Enterprise plan costs 100 USD per seat.", txt.Content)
	assert.Equal(t, ".txt", txt.Format)
	assert.Equal(t, int64(len(txt.Content)), txt.Size)
	assert.True(t, filepath.IsAbs(txt.Path))
	assert.Equal(t, txt.Path, string(txt.ID))

	md := docs[byName["onboarding.md"]]
	assert.Equal(t, ".md", md.Format)
	assert.Equal(t, "Onboarding Guide", md.Title)
	assert.Contains(t, md.Content, "sign the contract")

	assert.Equal(t, ".txt", docs[byName["UPPER.TXT"]].Format)
}

func TestLoadDocuments_MissingFolder(t *testing.T) {
	docs := LoadDocuments(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Empty(t, docs)
}

func TestLoadDocuments_Restartable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	writeFile(t, filepath.Join(root, "b.txt"), "beta")

	assert.Equal(t, LoadDocuments(root), LoadDocuments(root))
}

func TestParseDocument_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.xlsx")
	writeFile(t, path, "x")
	_, err := ParseDocument(path)
	assert.Error(t, err)
}

func TestDocxParagraphs(t *testing.T) {
	content := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Product </w:t></w:r><w:r><w:t>overview</w:t></w:r></w:p>
    <w:p><w:r><w:t>Price</w:t><w:tab/><w:t>49 USD</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t xml:space="preserve">Line one</w:t><w:br/><w:t>Line two</w:t></w:r></w:p>
  </w:body>
</w:document>`

	paragraphs, err := docxParagraphs(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"Product overview", "Price\t49 USD", "", "Line one\nLine two"}, paragraphs)
}

// writeDocx writes a minimal WordprocessingML package with one w:p per
// paragraph.
func writeDocx(t *testing.T, path string, paragraphs ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var body strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&body, "<w:p><w:r><w:t>%s</w:t></w:r></w:p>", p)
	}
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`},
		{"word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body.String() + `</w:body></w:document>`},
	}

	zw := zip.NewWriter(f)
	for _, part := range parts {
		w, err := zw.Create(part.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(part.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestParseDocument_Docx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contract.docx")
	writeDocx(t, path, "First para", "Second para")

	doc, err := ParseDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "First para\nSecond para", doc.Content)
	assert.Equal(t, ".docx", doc.Format)
	assert.Equal(t, "contract.docx", doc.Filename)
}

func TestParseDocument_PDF(t *testing.T) {
	doc, err := ParseDocument(filepath.Join("testdata", "sample.pdf"))
	require.NoError(t, err)
	assert.Equal(t, ".pdf", doc.Format)
	assert.Equal(t, 2, doc.Pages)

	first := strings.Index(doc.Content, "Quarterly pricing sheet")
	second := strings.Index(doc.Content, "Support terms apply")
	require.GreaterOrEqual(t, first, 0, doc.Content)
	require.Greater(t, second, first, doc.Content)
	assert.Contains(t, doc.Content[first:second], "\n")
}

func TestLoadDocuments_BinaryFormats(t *testing.T) {
	root := t.TempDir()
	pdfBytes, err := os.ReadFile(filepath.Join("testdata", "sample.pdf"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "pricing.pdf"), pdfBytes, 0o644))
	writeDocx(t, filepath.Join(root, "terms.docx"), "Net thirty days", "Renewal is automatic")

	docs := LoadDocuments(root)
	require.Len(t, docs, 2)
	byName := map[string]string{}
	for _, d := range docs {
		byName[d.Filename] = d.Content
	}
	assert.Contains(t, byName["pricing.pdf"], "Quarterly pricing sheet")
	assert.Equal(t, "Net thirty days\nRenewal is automatic", byName["terms.docx"])
}

func TestMarkdownTitle(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"atx heading", "# Price List\n\nbody", "Price List"},
		{"emphasis inside heading", "intro\n\n# The *Premium* Plan\n", "The Premium Plan"},
		{"only level two", "## Section\n\ntext", ""},
		{"setext heading", "Support Policy\n==============\n\nbody", "Support Policy"},
		{"no heading", "plain text", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, markdownTitle([]byte(tt.src)))
		})
	}
}

func TestListDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.PDF"), "%PDF")
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	docs, err := ListDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].Filename)
	assert.Equal(t, int64(5), docs[0].SizeBytes)
	assert.Equal(t, ".txt", docs[0].Extension)
	assert.Equal(t, ".pdf", docs[1].Extension)

	missing, err := ListDocuments(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}
