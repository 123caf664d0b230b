package models

const (
	DefaultCollection = "company_docs"
	DefaultModel      = "claude-sonnet-4-20250514"
	DefaultMaxTokens  = 2048
	DefaultTopK       = 5
	UnknownSource     = "Unknown"

	// ApologyMessage is returned as the answer whenever generation fails.
	ApologyMessage = "Sorry, there was an error processing your request. Please try again later."

	StatusSuccess = "success"
	StatusError   = "error"

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SupportedExtensions is the loader's allow-list.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
	".md":   true,
}

var (
	ContextChunkTemplate = "---\nSource: %s\nContent: %s\n\n"

	SystemPromptTemplate = `You are an expert commercial assistant. Answer ONLY from the documentation provided below.

DOCUMENTATION CONTEXT:
%s

INSTRUCTIONS:
- Answer clearly and professionally
- Cite the sources whenever you use specific information
- If the answer is not in the documentation, say so plainly
- Do not make up information
`
)
