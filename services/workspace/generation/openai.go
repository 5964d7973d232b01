// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generation

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AppForgeLocal/services/workspace"
)

// OpenAIConfig points the producer at an OpenAI-compatible completion
// endpoint. Local inference servers (vLLM, llama.cpp, Ollama) expose the
// same surface, so BaseURL is usually a localhost address.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

const editSystemPrompt = `You are a code generation engine for a web app builder.
Respond ONLY with file blocks, nothing else. Formats:

---file: <path>
<complete file content>

---delete: <path>

End your response with:
---end`

// openAIProducer asks the model for the full edit set in one completion,
// parses it, and then yields the edits one at a time through Next.
type openAIProducer struct {
	client  *openai.Client
	cfg     OpenAIConfig
	prompt  string
	files   []string
	fetched bool
	edits   []*Edit
	pos     int
}

// NewOpenAIFactory returns a ProducerFactory backed by an
// OpenAI-compatible chat completion API. The current file listing of the
// project is sent as context so the model can edit incrementally instead
// of regenerating everything.
func NewOpenAIFactory(cfg OpenAIConfig, manager *workspace.Manager) ProducerFactory {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	return func(ctx context.Context, req Request) (Producer, error) {
		ws, err := manager.Get(req.ProjectID)
		if err != nil {
			return nil, err
		}
		files, err := ws.Store().List("")
		if err != nil {
			return nil, err
		}
		return &openAIProducer{
			client: client,
			cfg:    cfg,
			prompt: req.Prompt,
			files:  files,
		}, nil
	}
}

// Next yields the parsed edits in order. The completion call happens on
// the first invocation, under that call's ctx deadline.
func (p *openAIProducer) Next(ctx context.Context) (*Edit, error) {
	if !p.fetched {
		if err := p.fetch(ctx); err != nil {
			return nil, err
		}
		p.fetched = true
	}
	if p.pos >= len(p.edits) {
		return nil, io.EOF
	}
	edit := p.edits[p.pos]
	p.pos++
	return edit, nil
}

func (p *openAIProducer) fetch(ctx context.Context) error {
	user := p.prompt
	if len(p.files) > 0 {
		user = fmt.Sprintf("Current project files:\n%s\n\nRequest: %s",
			strings.Join(p.files, "\n"), p.prompt)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: editSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ProducerError{Reason: "model backend unavailable", Err: err}
	}
	if len(resp.Choices) == 0 {
		return &ProducerError{Reason: "model returned no completion"}
	}

	edits, err := parseFileBlocks(resp.Choices[0].Message.Content)
	if err != nil {
		return &ProducerError{Reason: "unparseable model output", Err: err}
	}
	p.edits = edits
	return nil
}

// parseFileBlocks splits a model completion into edits. Unknown text
// between blocks is ignored; a block with an empty path is an error.
func parseFileBlocks(s string) ([]*Edit, error) {
	edits := make([]*Edit, 0)
	lines := strings.Split(s, "\n")

	var current *Edit
	var body []string
	flush := func() {
		if current == nil {
			return
		}
		content := strings.TrimRight(strings.Join(body, "\n"), "\n")
		// Strip fences the model sometimes wraps content in.
		if strings.HasPrefix(content, "```") {
			if idx := strings.Index(content, "\n"); idx >= 0 {
				content = content[idx+1:]
			} else {
				content = ""
			}
			content = strings.TrimRight(strings.TrimSuffix(strings.TrimRight(content, "\n"), "```"), "\n")
		}
		if content != "" {
			content += "\n"
		}
		current.Content = []byte(content)
		edits = append(edits, current)
		current = nil
		body = nil
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "---file:"):
			flush()
			path := strings.TrimSpace(strings.TrimPrefix(line, "---file:"))
			if path == "" {
				return nil, fmt.Errorf("file block with empty path")
			}
			current = &Edit{Path: path}
		case strings.HasPrefix(line, "---delete:"):
			flush()
			path := strings.TrimSpace(strings.TrimPrefix(line, "---delete:"))
			if path == "" {
				return nil, fmt.Errorf("delete block with empty path")
			}
			edits = append(edits, &Edit{Path: path, Delete: true})
		case strings.HasPrefix(line, "---end"):
			flush()
			return edits, nil
		default:
			if current != nil {
				body = append(body, line)
			}
		}
	}
	flush()
	return edits, nil
}

var _ Producer = (*openAIProducer)(nil)
