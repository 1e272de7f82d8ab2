// Package tools implements the collection tools exposed to the model:
// tree listing, file reading, and context saving.
package tools

const (
	TreeToolName = "get_tree_structure"
	ReadToolName = "get_file_content"
	SaveToolName = "save_ctx"
)
