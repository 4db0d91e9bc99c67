package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/genjobs/internal/client"
	"github.com/kelsos/genjobs/internal/models"
)

func newClient() *client.APIClient {
	return client.NewAPIClient("key", 5*time.Second)
}

func TestImageRequestSizeOnlyForSizeAwareModel(t *testing.T) {
	plus := NewImageProvider(newClient(), "http://unused", "cogview-3-plus")
	assert.Equal(t, "1344x768", plus.BuildRequest("sunset", "1344x768").Size)

	plain := NewImageProvider(newClient(), "http://unused", "cogview-3")
	assert.Empty(t, plain.BuildRequest("sunset", "1344x768").Size)

	body, err := json.Marshal(plain.BuildRequest("sunset", "1344x768"))
	require.NoError(t, err)
	assert.NotContains(t, string(body), "size")
}

func TestImageGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.ImageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sunset", req.Prompt)
		_, _ = w.Write([]byte(`{"created":1,"data":[{"url":"https://cdn.example.com/a.png"}]}`))
	}))
	defer server.Close()

	url, err := NewImageProvider(newClient(), server.URL, "cogview-3").Generate(context.Background(), "sunset", "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", url)
}

func TestImageGenerateProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"1301","message":"unsafe content"}}`))
	}))
	defer server.Close()

	_, err := NewImageProvider(newClient(), server.URL, "cogview-3").Generate(context.Background(), "x", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSubmission)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, http.StatusBadRequest, genErr.StatusCode)
	assert.Contains(t, genErr.Payload, "unsafe content")
	assert.Equal(t, "1301", genErr.Code)
	assert.Equal(t, "unsafe content", genErr.Message)
}

func TestImageGenerateEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	_, err := NewImageProvider(newClient(), server.URL, "cogview-3").Generate(context.Background(), "x", "")
	assert.ErrorIs(t, err, models.ErrSubmission)
}

func TestVideoSubmitAndQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		var req models.VideoRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "owner-1", req.UserID)
		_, _ = w.Write([]byte(`{"id":"task-9","task_status":"PROCESSING"}`))
	})
	mux.HandleFunc("/result/task-9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"task_status":"SUCCESS","video_result":[{"url":"https://cdn.example.com/v.mp4"}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := NewVideoProvider(newClient(), server.URL+"/videos", server.URL+"/result/{id}", "cogvideox")

	id, err := p.Submit(context.Background(), "a dog", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskID("task-9"), id)

	result, err := p.Query(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderStatusSuccess, result.TaskStatus)
	require.Len(t, result.VideoResult, 1)
	assert.Equal(t, "https://cdn.example.com/v.mp4", result.VideoResult[0].URL)
}

func TestVideoSubmitWithoutID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"task_status":"FAIL"}`))
	}))
	defer server.Close()

	p := NewVideoProvider(newClient(), server.URL, server.URL+"/{id}", "cogvideox")
	_, err := p.Submit(context.Background(), "x", "o")
	assert.ErrorIs(t, err, models.ErrSubmission)
}

func TestVideoQueryFailureWrapsErrQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewVideoProvider(newClient(), server.URL, server.URL+"/{id}", "cogvideox")
	_, err := p.Query(context.Background(), "t1")
	assert.ErrorIs(t, err, models.ErrQuery)
}

func TestTranslate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 1000, req.MaxTokens)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "日落", req.Messages[1].Content)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" sunset \n"}}]}`))
	}))
	defer server.Close()

	tr := NewTranslator(newClient(), server.URL, "glm-4-flash")
	assert.Equal(t, "sunset", tr.Translate(context.Background(), "日落"))
}

func TestTranslateFallsBackToOriginal(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()

	ctx := context.Background()
	assert.Equal(t, "日落", NewTranslator(newClient(), failing.URL, "m").Translate(ctx, "日落"))
	assert.Equal(t, "日落", NewTranslator(newClient(), empty.URL, "m").Translate(ctx, "日落"))
	assert.Equal(t, "日落", NewTranslator(newClient(), "", "m").Translate(ctx, "日落"))

	var nilTranslator *Translator
	assert.Equal(t, "日落", nilTranslator.Translate(ctx, "日落"))
}

func TestSubmitterRoutesByKind(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/images", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"url":"https://cdn.example.com/i.png"}]}`))
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"v-1"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := &Submitter{
		Images: NewImageProvider(newClient(), server.URL+"/images", "cogview-3"),
		Videos: NewVideoProvider(newClient(), server.URL+"/videos", server.URL+"/r/{id}", "cogvideox"),
	}

	ctx := context.Background()
	img, err := s.Submit(ctx, JobRequest{Kind: models.KindImage, Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/i.png", img.ResultURL)
	assert.Empty(t, img.TaskID)

	vid, err := s.Submit(ctx, JobRequest{Kind: models.KindVideo, Prompt: "p", OwnerID: "o"})
	require.NoError(t, err)
	assert.Equal(t, models.TaskID("v-1"), vid.TaskID)
	assert.Empty(t, vid.ResultURL)

	_, err = s.Submit(ctx, JobRequest{Kind: "audio"})
	assert.ErrorIs(t, err, models.ErrSubmission)
}
