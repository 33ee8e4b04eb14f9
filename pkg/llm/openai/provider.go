package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/noman-nawaz-dev/chatbot-backend/pkg/llm"
)

type OpenAIProvider struct {
	ModelName string
	Client    *openai.Client
}

var (
	_ llm.Provider       = &OpenAIProvider{}
	_ llm.VisionProvider = &OpenAIProvider{}
)

func NewOpenAIProvider(apiKey, modelName string) *OpenAIProvider {
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &OpenAIProvider{
		ModelName: modelName,
		Client:    openai.NewClient(apiKey),
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	options := llm.ApplyOptions(opts...)

	resp, err := p.Client.CreateChatCompletion(ctx, p.buildRequest(prompt, options, false))
	if err != nil {
		return "", &llm.GenerationError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &llm.GenerationError{Provider: "openai", Err: errors.New("empty completion response")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) GenerateStream(ctx context.Context, prompt string, onChunk func(string) error, opts ...llm.Option) error {
	options := llm.ApplyOptions(opts...)

	stream, err := p.Client.CreateChatCompletionStream(ctx, p.buildRequest(prompt, options, true))
	if err != nil {
		return &llm.GenerationError{Provider: "openai", Err: err}
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &llm.GenerationError{Provider: "openai", Err: err}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := onChunk(delta); err != nil {
				return err
			}
		}
	}
}

// Describe captions an image via a data-URL vision request.
func (p *OpenAIProvider) Describe(ctx context.Context, data []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	resp, err := p.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.ModelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Describe the contents of this image in detail.",
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty vision response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) buildRequest(prompt string, options *llm.Options, stream bool) openai.ChatCompletionRequest {
	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		Stream:      stream,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
}
