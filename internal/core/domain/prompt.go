package domain

// Prompt template placeholders.
const (
	PlaceholderContext  = "{{context}}"
	PlaceholderQuestion = "{{question}}"
)

// DefaultRAGAnswerPrompt frames retrieved documents and the question.
const DefaultRAGAnswerPrompt = `You are a helpful assistant with access to the following college documents:
{{context}}

Question: {{question}}

Instructions:
- Answer the question concisely and accurately based on the provided documents
- Use specific information from the documents when possible
- If the answer is not in the documents, say so clearly
- Include relevant references to document sources
- Keep your response focused and helpful

Answer:`

// DefaultRAGSystemPrompt is the system message for chat-style backends.
const DefaultRAGSystemPrompt = "You are a helpful assistant for college students. " +
	"Answer questions based on the provided documents."
