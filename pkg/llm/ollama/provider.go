package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/noman-nawaz-dev/chatbot-backend/pkg/llm"
)

type OllamaProvider struct {
	BaseURL     string
	ModelName   string
	VisionModel string
	Client      *http.Client
}

var (
	_ llm.Provider       = &OllamaProvider{}
	_ llm.VisionProvider = &OllamaProvider{}
)

func NewOllamaProvider(baseURL, modelName, visionModel string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if visionModel == "" {
		visionModel = "llava"
	}
	return &OllamaProvider{
		BaseURL:     baseURL,
		ModelName:   modelName,
		VisionModel: visionModel,
		Client: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

// --- Request/Response structs (internal to this package) ---

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Images  []string       `json:"images,omitempty"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// --- Interface implementation ---

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	options := llm.ApplyOptions(opts...)

	body, err := o.doRequest(ctx, o.buildRequest(prompt, false, nil, options))
	if err != nil {
		return "", &llm.GenerationError{Provider: "ollama", Err: err}
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", &llm.GenerationError{Provider: "ollama", Err: err}
	}

	var resp ollamaGenerateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &llm.GenerationError{Provider: "ollama", Err: err}
	}
	return resp.Response, nil
}

// GenerateStream reads the NDJSON stream Ollama produces with stream=true,
// forwarding each fragment until the final done marker.
func (o *OllamaProvider) GenerateStream(ctx context.Context, prompt string, onChunk func(string) error, opts ...llm.Option) error {
	options := llm.ApplyOptions(opts...)

	body, err := o.doRequest(ctx, o.buildRequest(prompt, true, nil, options))
	if err != nil {
		return &llm.GenerationError{Provider: "ollama", Err: err}
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp ollamaGenerateResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return &llm.GenerationError{Provider: "ollama", Err: fmt.Errorf("malformed stream line: %w", err)}
		}

		if resp.Response != "" {
			if err := onChunk(resp.Response); err != nil {
				return err
			}
		}
		if resp.Done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return &llm.GenerationError{Provider: "ollama", Err: err}
	}
	// Stream ended without a done marker: treat as a truncated generation.
	return &llm.GenerationError{Provider: "ollama", Err: io.ErrUnexpectedEOF}
}

// Describe captions an image with the configured multimodal model.
func (o *OllamaProvider) Describe(ctx context.Context, data []byte, mimeType string) (string, error) {
	req := ollamaGenerateRequest{
		Model:  o.VisionModel,
		Prompt: "Describe the contents of this image in detail.",
		Stream: false,
		Images: []string{base64.StdEncoding.EncodeToString(data)},
	}

	body, err := o.doRequest(ctx, req)
	if err != nil {
		return "", err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	var resp ollamaGenerateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (o *OllamaProvider) buildRequest(prompt string, stream bool, images []string, options *llm.Options) ollamaGenerateRequest {
	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}
	return ollamaGenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: stream,
		Images: images,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
			NumPredict:  options.MaxTokens,
		},
	}
}

func (o *OllamaProvider) doRequest(ctx context.Context, reqBody ollamaGenerateRequest) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/generate", o.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(raw))
	}
	return resp.Body, nil
}
