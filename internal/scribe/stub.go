package scribe

import (
	"context"
	"fmt"
	"strings"
)

// StubClient is a deterministic scribe used when no API key is configured
// and in tests. It derives one proposed task per Action bookmark note and a
// minimal minutes document from the transcript.
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

func (s *StubClient) Generate(_ context.Context, input Input) (*Result, error) {
	proposal := CreateTasksPayload{Tasks: []TaskProposal{}}
	for _, b := range input.Bookmarks {
		if b.Kind != "Action" || b.Note == "" {
			continue
		}
		proposal.Tasks = append(proposal.Tasks, TaskProposal{Title: b.Note})
	}

	summary := input.TranscriptFullText
	if i := strings.Index(summary, "."); i > 0 {
		summary = summary[:i+1]
	}

	return &Result{
		MinutesMD: fmt.Sprintf("# Minutes\n\n## Summary\n- %s\n", summary),
		Proposal:  proposal,
	}, nil
}
