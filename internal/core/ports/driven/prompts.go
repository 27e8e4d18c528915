package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations return the built-in default
	// or an error when no default exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names.
const (
	// PromptRAGAnswer frames retrieved context and the user question.
	// The template expects {{context}} and {{question}} placeholders.
	PromptRAGAnswer = "rag_answer"

	// PromptRAGSystem is the system instruction for chat-style backends.
	// This prompt has no placeholders.
	PromptRAGSystem = "rag_system"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service uses built-in default prompts.
	SetPromptStore(store PromptStore)
}
