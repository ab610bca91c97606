package scribe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"opsdesk/internal/domain"
)

const maxTranscriptChars = 50_000

// OpenAIClient is the production scribe backed by a chat completion with a
// JSON response format.
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, input Input) (*Result, error) {
	request := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String("You turn meeting transcripts into crisp minutes and actionable tasks."),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(buildPrompt(input)),
					},
				},
			},
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	completion, err := c.client.Chat.Completions.New(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: scribe completion: %v", domain.ErrUpstreamFailure, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: scribe returned no choices", domain.ErrUpstreamFailure)
	}

	var result Result
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("%w: unparsable scribe output: %v", domain.ErrUpstreamFailure, err)
	}
	return &result, nil
}

func buildPrompt(input Input) string {
	bookmarks, _ := json.Marshal(input.Bookmarks)

	transcript := input.TranscriptFullText
	if len(transcript) > maxTranscriptChars {
		cut := maxTranscriptChars
		for cut > 0 && !utf8.RuneStart(transcript[cut]) {
			cut--
		}
		transcript = transcript[:cut]
	}

	return strings.Join([]string{
		"Given the transcript and bookmarks, produce meeting minutes and extract action items.",
		"Return strictly valid JSON with keys: minutes_md, decisions, action_items, risks, create_tasks_proposal.",
		"create_tasks_proposal has a tasks array of {title, description_md, priority, due_at, owner_person_id}.",
		"",
		"Company: " + input.CompanyID,
		"",
		"Bookmarks:",
		string(bookmarks),
		"",
		"Transcript (full text):",
		transcript,
	}, "\n")
}
