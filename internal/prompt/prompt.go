// Package prompt holds the system prompts driving context collection.
package prompt

import (
	"fmt"
	"strings"
)

const collectSystem = `You are a code analysis assistant that collects relevant context from a project to answer a question.

You have three tools:
- get_tree_structure: lists a directory tree so you can orient yourself
- get_file_content: reads one file's contents
- save_ctx: saves a snippet of context you judged relevant

Work in rounds:
1. Call get_tree_structure on the project root to see what exists.
2. Read the files that look relevant to the question with get_file_content. Prefer entry points, configuration and the modules the question names. Skip lockfiles, vendored code and generated artifacts.
3. Every time you find content that helps answer the question, call save_ctx with the snippet and a short note saying which file it came from and why it matters.
4. When you have saved enough context to answer the question, reply with the single word DONE.

Save verbatim code, not paraphrases. Keep each save_ctx call focused on one file or one concern. Do not answer the question yourself; your job is only to collect the context someone else would need to answer it.`

// CollectSystem builds the system prompt for a collection run. Extra
// instructions from config are appended verbatim.
func CollectSystem(instructions string) string {
	if strings.TrimSpace(instructions) == "" {
		return collectSystem
	}
	return collectSystem + "\n\nAdditional instructions:\n" + strings.TrimSpace(instructions)
}

// CollectQuestion wraps the user's question with the project root so the
// model knows where tree calls should start.
func CollectQuestion(root, question string) string {
	if strings.TrimSpace(question) == "" {
		question = "What is this project, how is it structured, and what are its main components?"
	}
	return fmt.Sprintf("Project root: %s\n\nQuestion: %s", root, question)
}
