package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"resty.dev/v3"

	"chatdesk/chat-api/internal/infrastructure/logger"
	"chatdesk/chat-api/internal/utils/platformerrors"
)

const (
	channelBufferSize    = 100
	errorBufferSize      = 10
	dataPrefix           = "data: "
	doneMarker           = "[DONE]"
	newlineChar          = "\n"
	scannerInitialBuffer = 12 * 1024        // 12KB
	scannerMaxBuffer     = 10 * 1024 * 1024 // 10MB
)

type StreamOption func(*resty.Request)

// BeforeDoneCallback runs after the full response is observed and before the
// [DONE] marker is written to the client.
type BeforeDoneCallback func(*gin.Context, *openai.ChatCompletionResponse) error

type ChoiceDelta struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

type StreamChoice struct {
	Delta ChoiceDelta `json:"delta"`
}

func WithHeader(key, value string) StreamOption {
	return func(r *resty.Request) {
		if strings.TrimSpace(key) == "" {
			return
		}
		r.SetHeader(key, value)
	}
}

// ChatCompletionClient talks to an OpenAI-compatible completion endpoint.
type ChatCompletionClient struct {
	client        *resty.Client
	baseURL       string
	name          string
	streamTimeout time.Duration
}

func NewChatCompletionClient(client *resty.Client, name, baseURL string, streamTimeout time.Duration) *ChatCompletionClient {
	return &ChatCompletionClient{
		client:        client,
		baseURL:       normalizeBaseURL(baseURL),
		name:          name,
		streamTimeout: streamTimeout,
	}
}

// CreateChatCompletion performs a non-streaming completion call.
func (c *ChatCompletionClient) CreateChatCompletion(ctx context.Context, apiKey string, request openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	var respBody openai.ChatCompletionResponse
	resp, err := c.prepareRequest(ctx, apiKey).
		SetBody(request).
		SetResult(&respBody).
		Post(c.endpoint("/chat/completions"))
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "completion request failed", err, "f0b4d8a2-6c1e-4539-9f0b-3d7a1c5e8f2b")
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "completion request failed")
	}
	return &respBody, nil
}

// StreamChatCompletionToContext streams a completion to the gin response
// writer, flushing each SSE line as it arrives. It returns the assembled full
// response once the provider stream ends. When the client disconnects
// mid-stream, writing stops but the provider stream keeps draining so the
// returned response still reflects the full output.
func (c *ChatCompletionClient) StreamChatCompletionToContext(reqCtx *gin.Context, apiKey string, request openai.ChatCompletionRequest, beforeDone BeforeDoneCallback, opts ...StreamOption) (*openai.ChatCompletionResponse, error) {
	// force usage reporting so metering gets real token counts
	request.StreamOptions = &openai.StreamOptions{
		IncludeUsage: true,
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(reqCtx.Request.Context()), c.streamTimeout)

	dataChan := make(chan string, channelBufferSize)
	errChan := make(chan error, errorBufferSize)

	var wg sync.WaitGroup
	wg.Add(1)
	go c.streamResponseToChannel(ctx, apiKey, request, dataChan, errChan, &wg, opts)
	defer func() {
		// Cancel before waiting so a producer still reading the provider
		// body unblocks immediately instead of running out the timeout.
		cancel()
		wg.Wait()
	}()

	var contentBuilder strings.Builder
	var reasoningBuilder strings.Builder
	var usage *openai.Usage
	clientGone := false

	clientCtx := reqCtx.Request.Context()

	for {
		select {
		case line, ok := <-dataChan:
			if !ok {
				// The sender closed the channel; a pending error means the
				// stream broke mid-way and nothing may be persisted.
				select {
				case err, pending := <-errChan:
					if pending && err != nil {
						if reqCtx.Writer.Written() && !clientGone {
							_ = c.writeSSELine(reqCtx, "event: error")
							_ = c.writeSSELine(reqCtx, dataPrefix+`{"error":"stream interrupted"}`)
						}
						return nil, platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerInfrastructure, err, "streaming error", "e2b6d0f4-8a3c-4159-9e2b-7d0f4a8c2e6b")
					}
				default:
				}
				// Provider closed without [DONE]; treat as a normal end so the
				// callback still sees the assembled response, and synthesize the
				// terminal marker for the client.
				response := c.buildCompleteResponse(contentBuilder.String(), reasoningBuilder.String(), usage, request)
				if beforeDone != nil {
					if err := beforeDone(reqCtx, response); err != nil {
						log := logger.GetLogger()
						log.Warn().Err(err).Msg("beforeDone callback failed")
					}
				}
				if !clientGone {
					_ = c.writeSSELine(reqCtx, dataPrefix+doneMarker)
				}
				return response, nil
			}

			data, isData := strings.CutPrefix(line, dataPrefix)
			if isData && data == doneMarker {
				response := c.buildCompleteResponse(contentBuilder.String(), reasoningBuilder.String(), usage, request)
				if beforeDone != nil {
					if err := beforeDone(reqCtx, response); err != nil {
						log := logger.GetLogger()
						log.Warn().Err(err).Msg("beforeDone callback failed")
					}
				}
				if !clientGone {
					if err := c.writeSSELine(reqCtx, line); err != nil {
						clientGone = true
					}
				}
				return response, nil
			}

			if !clientGone {
				if err := c.writeSSELine(reqCtx, line); err != nil {
					clientGone = true
				}
			}

			if isData {
				if choice, chunkUsage := c.processStreamChunk(data); choice != nil {
					contentBuilder.WriteString(choice.Delta.Content)
					reasoningBuilder.WriteString(choice.Delta.ReasoningContent)
					if chunkUsage != nil {
						usage = chunkUsage
					}
				}
			}

		case err, ok := <-errChan:
			if ok && err != nil {
				// Partial output already flushed stays with the client; no
				// complete response exists, so the caller must not persist.
				// Before the first write nothing is flushed at all, leaving
				// the caller free to respond with a real HTTP error status.
				if reqCtx.Writer.Written() && !clientGone {
					_ = c.writeSSELine(reqCtx, "event: error")
					_ = c.writeSSELine(reqCtx, dataPrefix+`{"error":"stream interrupted"}`)
				}
				return nil, platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerInfrastructure, err, "streaming error", "4d8f2b6e-0a3c-4715-8d4f-9b1e5c7a0d3f")
			}

		case <-ctx.Done():
			return nil, platformerrors.AsErrorWithUUID(ctx, platformerrors.LayerInfrastructure, ctx.Err(), "streaming timed out", "8b2f6d0a-4e7c-4193-b8a2-5f9d1e3c6b0f")

		case <-clientCtx.Done():
			// Stop transcribing to the dead connection; keep draining the
			// provider so history and billing stay accurate.
			clientGone = true
			clientCtx = context.Background()
		}
	}
}

func (c *ChatCompletionClient) setupSSEHeaders(reqCtx *gin.Context) {
	reqCtx.Header("Content-Type", "text/event-stream")
	reqCtx.Header("Cache-Control", "no-cache")
	reqCtx.Header("Connection", "keep-alive")
	reqCtx.Header("X-Accel-Buffering", "no")
	reqCtx.Writer.WriteHeaderNow()
}

func (c *ChatCompletionClient) prepareRequest(ctx context.Context, apiKey string) *resty.Request {
	req := c.client.R().SetContext(ctx)
	req.SetHeader("Content-Type", "application/json")
	if strings.TrimSpace(apiKey) != "" {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	}
	return req
}

func (c *ChatCompletionClient) endpoint(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

func (c *ChatCompletionClient) errorFromResponse(ctx context.Context, resp *resty.Response, message string) error {
	if resp == nil || resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, message, nil, "c6a0e4b8-2d5f-4371-a9c6-0e3b7d1f4a8c")
	}
	defer resp.RawResponse.Body.Close()
	body, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil || strings.TrimSpace(string(body)) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, fmt.Sprintf("%s: status %d", message, resp.StatusCode()), nil, "2e6a0c4d-8f1b-4957-b2e6-7a0d3f5b8c1e")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, fmt.Sprintf("%s: %s", message, strings.TrimSpace(string(body))), nil, "6a0e4c8b-2f5d-4713-96a0-1d4f7b0e3c5a")
}

func (c *ChatCompletionClient) doStreamingRequest(ctx context.Context, apiKey string, request openai.ChatCompletionRequest, opts ...StreamOption) (*resty.Response, error) {
	req := c.prepareRequest(ctx, apiKey).
		SetBody(request).
		SetDoNotParseResponse(true)

	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.SetHeader("Accept-Encoding", "identity")
	}

	resp, err := req.Post(c.endpoint("/chat/completions"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "streaming request failed")
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "streaming request failed: empty response body", nil, "0c4a8e2d-6b9f-4535-80c4-3e7b1d5f8a2c")
	}
	return resp, nil
}

func (c *ChatCompletionClient) streamResponseToChannel(ctx context.Context, apiKey string, request openai.ChatCompletionRequest, dataChan chan<- string, errChan chan<- error, wg *sync.WaitGroup, opts []StreamOption) {
	defer wg.Done()
	defer close(dataChan)

	resp, err := c.doStreamingRequest(ctx, apiKey, request, opts...)
	if err != nil {
		c.sendAsyncError(errChan, err)
		return
	}
	defer func() {
		if closeErr := resp.RawResponse.Body.Close(); closeErr != nil {
			log := logger.GetLogger()
			log.Error().Err(closeErr).Str("client", c.name).Msg("unable to close response body")
		}
	}()

	scanner := bufio.NewScanner(resp.RawResponse.Body)
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)

	for scanner.Scan() {
		select {
		case dataChan <- scanner.Text():
		case <-ctx.Done():
			c.sendAsyncError(errChan, ctx.Err())
			return
		}
	}

	if err := scanner.Err(); err != nil {
		c.sendAsyncError(errChan, err)
	}
}

// writeSSELine flushes one line to the client. Headers go out with the first
// line rather than up front, so a stream that fails before producing anything
// leaves the response untouched for a regular error status.
func (c *ChatCompletionClient) writeSSELine(reqCtx *gin.Context, line string) error {
	if !reqCtx.Writer.Written() {
		c.setupSSEHeaders(reqCtx)
	}
	if _, err := reqCtx.Writer.Write([]byte(line + newlineChar)); err != nil {
		return err
	}
	reqCtx.Writer.Flush()
	return nil
}

func (c *ChatCompletionClient) processStreamChunk(data string) (*StreamChoice, *openai.Usage) {
	var streamData struct {
		Choices []StreamChoice `json:"choices"`
		Usage   *openai.Usage  `json:"usage"`
	}

	if err := json.Unmarshal([]byte(data), &streamData); err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Str("client", c.name).Str("data", data).Msg("failed to parse stream chunk JSON")
		return nil, nil
	}

	result := &StreamChoice{}
	for _, choice := range streamData.Choices {
		result.Delta.Content += choice.Delta.Content
		result.Delta.ReasoningContent += choice.Delta.ReasoningContent
	}
	return result, streamData.Usage
}

func (c *ChatCompletionClient) buildCompleteResponse(content, reasoning string, usage *openai.Usage, request openai.ChatCompletionRequest) *openai.ChatCompletionResponse {
	message := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: content,
	}
	if reasoning != "" {
		message.ReasoningContent = reasoning
	}

	finalUsage := openai.Usage{}
	if usage != nil {
		finalUsage = *usage
	} else {
		// Provider never reported usage; fall back to a word-count estimate
		finalUsage.PromptTokens = c.estimateTokens(request.Messages)
		finalUsage.CompletionTokens = c.estimateTokens([]openai.ChatCompletionMessage{message})
		finalUsage.TotalTokens = finalUsage.PromptTokens + finalUsage.CompletionTokens
	}

	return &openai.ChatCompletionResponse{
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   request.Model,
		Choices: []openai.ChatCompletionChoice{
			{
				Index:        0,
				Message:      message,
				FinishReason: openai.FinishReasonStop,
			},
		},
		Usage: finalUsage,
	}
}

func (c *ChatCompletionClient) estimateTokens(messages []openai.ChatCompletionMessage) int {
	var allText strings.Builder
	for _, msg := range messages {
		allText.WriteString(msg.Content)
		allText.WriteString(" ")
	}
	return len(strings.Fields(allText.String()))
}

func (c *ChatCompletionClient) sendAsyncError(errChan chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case errChan <- err:
	default:
	}
}

func (c *ChatCompletionClient) BaseURL() string {
	return c.baseURL
}

func normalizeBaseURL(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
