package mofdb

import (
	"context"

	"github.com/harun/mofflow/pkg/toolexec"
)

// ToolName is the registry name of the structure search tool.
const ToolName = "search_mof_db"

// RegisterSearchTool binds the library into the tool registry as the
// search_mof_db tool. Its input is the original request text.
func RegisterSearchTool(registry *toolexec.Registry, lib *Library) error {
	return registry.Register(toolexec.Definition{
		Name:        ToolName,
		Description: "Search the structure library for a MOF matching a text query",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query_string": map[string]interface{}{"type": "string"},
			},
			"required": []string{"query_string"},
		},
		Source: toolexec.SourceRequest,
		ArgKey: "query_string",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			query, _ := args["query_string"].(string)
			return lib.Search(query), nil
		},
	})
}
