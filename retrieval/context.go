package retrieval

import (
	"fmt"
	"strings"

	"github.com/fiscus/taxchat/core"
)

// DefaultMaxContextChars caps the assembled context handed to the model.
const DefaultMaxContextChars = 15000

// BuildContext formats search results into a source-attributed context
// string. Each result becomes a block of the form
//
//	[Document N: <source>, Page <p> (Relevance: <score>)]
//	<chunk text>
//
// Blocks are added in result order until the next block would push the
// context past maxChars; a result is dropped whole rather than truncated
// mid-chunk. A maxChars of zero or less uses DefaultMaxContextChars.
func BuildContext(results []*core.SearchResult, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, 0, len(results))
	length := 0
	for i, res := range results {
		if res == nil || res.Chunk == nil {
			continue
		}

		block := fmt.Sprintf("[Document %d: %s, Page %d (Relevance: %.3f)]\n%s\n",
			i+1, res.Chunk.Source, res.Chunk.Page, res.Score, res.Chunk.Content)
		if length+len(block) > maxChars {
			break
		}

		parts = append(parts, block)
		length += len(block)
	}

	return strings.Join(parts, "\n")
}
