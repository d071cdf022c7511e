// ABOUTME: Payload dialects that pull the text fragment out of one upstream frame
// ABOUTME: Workers AI sends {"response": "..."}; OpenAI-compatible servers send chat completion chunks

package transcode

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Dialect extracts the incremental text from a non-terminal frame payload.
type Dialect struct {
	Name    string
	Extract func(data []byte) (string, error)
}

// WorkersAI decodes {"response": string}. A missing field yields "".
var WorkersAI = Dialect{
	Name: "workers-ai",
	Extract: func(data []byte) (string, error) {
		var payload struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return "", fmt.Errorf("decoding response payload: %w", err)
		}
		return payload.Response, nil
	},
}

// OpenAI decodes a chat.completion.chunk and returns the first choice's
// content delta. Chunks without choices (usage reports) yield "".
var OpenAI = Dialect{
	Name: "openai",
	Extract: func(data []byte) (string, error) {
		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			return "", fmt.Errorf("decoding chat completion chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			return "", nil
		}
		return chunk.Choices[0].Delta.Content, nil
	},
}
