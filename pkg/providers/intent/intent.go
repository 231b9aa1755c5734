// Package intent implements a minimal keyword-based Intent provider:
// recognizing an explicit "exit" utterance before it reaches the LLM,
// grounded on receiveAudioHandle.py's startToChat (intent analysis
// runs before the regular chat path) and no_voice_close_connect's
// graceful-goodbye framing, reinterpreted here as an explicit intent
// rather than a silence timeout.
package intent

import (
	"context"
	"strings"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/orchestrator"
)

var defaultExitPhrases = []string{
	"goodbye", "bye", "exit", "quit", "stop talking", "再见", "拜拜",
}

// Provider recognizes a small, configurable set of exit phrases as
// substrings of the (lower-cased) user utterance. Any match appends the
// farewell text as an assistant message, closes the session and reports
// the intent as handled so the caller skips the regular chat turn.
type Provider struct {
	llm          orchestrator.LLM
	exitPhrases  []string
	farewellText string
}

// New builds a Provider. An empty phrases slice uses the built-in
// default set.
func New(phrases []string, farewellText string) *Provider {
	if len(phrases) == 0 {
		phrases = defaultExitPhrases
	}
	if farewellText == "" {
		farewellText = "Goodbye!"
	}
	return &Provider{exitPhrases: phrases, farewellText: farewellText}
}

// SetLLM implements orchestrator.Intent. The lightweight provider does
// not call the LLM itself (pure keyword matching) but keeps the
// reference for providers built on top of it.
func (p *Provider) SetLLM(llm orchestrator.LLM) { p.llm = llm }

// HandleUserIntent implements orchestrator.Intent: on an exit phrase
// match it appends a farewell assistant message and closes the
// session, reporting the intent as handled so the Utterance Pipeline
// skips the regular chat turn.
func (p *Provider) HandleUserIntent(ctx context.Context, conn *orchestrator.Session, text string) (bool, error) {
	lower := strings.ToLower(text)
	for _, phrase := range p.exitPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			conn.Dialogue().Put(orchestrator.NewMessage(orchestrator.RoleAssistant, p.farewellText, nil))
			go func() {
				_ = conn.Close()
			}()
			return true, nil
		}
	}
	return false, nil
}
