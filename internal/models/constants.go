package models

const (
	// ContextSeparator sits between chunk texts in an assembled context window.
	ContextSeparator = "\n---\n"

	// FallbackAnswer is returned when retrieval yields no matches.
	FallbackAnswer = "I couldn't find relevant information."

	PDFContentType = "application/pdf"

	// metadata keys stored alongside every vector record
	MetaFilename   = "filename"
	MetaPageIndex  = "page_index"
	MetaChunkIndex = "chunk_index"
	MetaTokenCount = "token_count"
)

var (
	AnswerInstruction = `You are a meticulous assistant. Use the provided CONTEXT to answer the USER question.
If the CONTEXT is insufficient to answer confidently, say so instead of inventing information.
Make sure the answer to the question is properly formatted for the USER, but do not change the content of the answer (do not invent new information).
`

	QuestionPromptTemplate = `QUESTION:
 %s
CONTEXT:
 %s
`
)
