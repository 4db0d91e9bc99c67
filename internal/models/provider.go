package models

// Provider-side status markers for video jobs.
const (
	ProviderStatusProcessing = "PROCESSING"
	ProviderStatusSuccess    = "SUCCESS"
	ProviderStatusFail       = "FAIL"
)

type ImageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

type ImageData struct {
	URL string `json:"url"`
}

type ImageResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

type VideoRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	UserID string `json:"user_id"`
}

type VideoSubmitResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	RequestID  string `json:"request_id"`
	TaskStatus string `json:"task_status"`
}

type VideoResult struct {
	URL           string `json:"url"`
	CoverImageURL string `json:"cover_image_url"`
}

type VideoResultResponse struct {
	Model       string        `json:"model"`
	RequestID   string        `json:"request_id"`
	TaskStatus  string        `json:"task_status"`
	VideoResult []VideoResult `json:"video_result"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type ChatChoice struct {
	Index   int         `json:"index"`
	Message ChatMessage `json:"message"`
}

type ChatResponse struct {
	Choices []ChatChoice `json:"choices"`
}
