package query

import "strings"

// contextSeparator joins retrieved chunk contents in the context block.
const contextSeparator = "\n\n"

// promptHeader instructs the model to answer strictly from context.
const promptHeader = "You are an intelligent assistant.\n" +
	"Answer the question ONLY using the context below.\n" +
	"If the answer is not in the context, say \"I don't know\".\n" +
	"\n" +
	"Context:\n"

// BuildPrompt fills the fixed grounding template with the joined context and
// the question. An empty context still produces a complete prompt.
func BuildPrompt(contexts []string, question string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString(strings.Join(contexts, contextSeparator))
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:\n")
	return b.String()
}
