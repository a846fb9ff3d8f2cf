// ABOUTME: Language model capability shared by the concept extractor and validity assessor
// ABOUTME: Any client that turns a prompt into text satisfies Invoker
package llm

import "context"

// Invoker sends a prompt to a language model and returns its text completion
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Named is implemented by invokers that can report the model they call
type Named interface {
	ChatModel() string
}

// ModelName returns the chat model name of inv, or "unknown"
func ModelName(inv Invoker) string {
	if n, ok := inv.(Named); ok {
		return n.ChatModel()
	}
	return "unknown"
}
