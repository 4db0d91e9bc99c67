package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/genjobs/internal/command"
	"github.com/kelsos/genjobs/internal/config"
	"github.com/kelsos/genjobs/internal/delivery"
	"github.com/kelsos/genjobs/internal/models"
)

// fakeProvider serves the image, video, result, chat and file endpoints.
type fakeProvider struct {
	server *httptest.Server

	mu            sync.Mutex
	imageRequests []models.ImageRequest
	videoRequests []models.VideoRequest
	polls         int
	pendingPolls  int
	videoStatus   string
	failSubmit    bool
	translation   string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{videoStatus: models.ProviderStatusSuccess, translation: "sunset"}

	mux := http.NewServeMux()
	mux.HandleFunc("/images", func(w http.ResponseWriter, r *http.Request) {
		var req models.ImageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.imageRequests = append(f.imageRequests, req)
		fail := f.failSubmit
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"1301","message":"rejected"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"url":"` + f.server.URL + `/files/image.png"}]}`))
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		var req models.VideoRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.videoRequests = append(f.videoRequests, req)
		fail := f.failSubmit
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"id":"video-task-1","task_status":"PROCESSING"}`))
	})
	mux.HandleFunc("/result/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		status := f.videoStatus
		if f.polls <= f.pendingPolls {
			status = models.ProviderStatusProcessing
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(models.VideoResultResponse{
			TaskStatus:  status,
			VideoResult: []models.VideoResult{{URL: f.server.URL + "/files/video.mp4"}},
		})
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		translation := f.translation
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(models.ChatResponse{
			Choices: []models.ChatChoice{{Message: models.ChatMessage{Role: "assistant", Content: translation}}},
		})
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("binary"))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeProvider) config(t *testing.T, imageModel string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.APIKey = "key"
	cfg.ImageBaseURL = f.server.URL + "/images"
	cfg.ImageModel = imageModel
	cfg.VideoBaseURL = f.server.URL + "/videos"
	cfg.VideoModel = "cogvideox"
	cfg.VideoResultURL = f.server.URL + "/result/{id}"
	cfg.TranslateAPIURL = f.server.URL + "/chat"
	cfg.TranslateModel = "glm-4-flash"
	cfg.StoragePath = t.TempDir()
	cfg.PollInterval = time.Millisecond
	require.NoError(t, cfg.Validate())
	return cfg
}

func newService(t *testing.T, cfg *config.Config) (*GenerationService, *delivery.Recorder) {
	t.Helper()
	recorder := delivery.NewRecorder()
	svc := NewGenerationService(cfg, recorder)
	t.Cleanup(func() { svc.Shutdown(5 * time.Second) })
	return svc, recorder
}

func message(content string) Message {
	return Message{
		OwnerID: "owner-1",
		Target:  models.DeliveryTarget{SessionID: "session-1", Receiver: "room"},
		Content: content,
	}
}

func TestImageSizeSentOnlyForSizeAwareModel(t *testing.T) {
	tests := []struct {
		model    string
		wantSize string
	}{
		{model: config.SizeAwareImageModel, wantSize: "1344x768"},
		{model: "cogview-3", wantSize: ""},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			fake := newFakeProvider(t)
			svc, recorder := newService(t, fake.config(t, tt.model))

			outcome, err := svc.HandleMessage(context.Background(), message("智谱画图 日落 --ar 16:9"))
			require.NoError(t, err)
			assert.True(t, outcome.Handled)
			assert.Equal(t, command.ActionImage, outcome.Action)

			fake.mu.Lock()
			require.Len(t, fake.imageRequests, 1)
			req := fake.imageRequests[0]
			fake.mu.Unlock()

			assert.Equal(t, "sunset", req.Prompt)
			assert.Equal(t, tt.wantSize, req.Size)

			images := recorder.OfKind(delivery.KindImage)
			require.Len(t, images, 1)
			assert.Equal(t, outcome.Path, images[0].Path)
			assert.FileExists(t, outcome.Path)

			texts := recorder.OfKind(delivery.KindText)
			require.Len(t, texts, 1)
			assert.Contains(t, texts[0].Text, "Translated prompt: sunset")
		})
	}
}

func TestImageSubmissionFailure(t *testing.T) {
	fake := newFakeProvider(t)
	fake.failSubmit = true
	svc, recorder := newService(t, fake.config(t, "cogview-3"))

	outcome, err := svc.HandleMessage(context.Background(), message("智谱画图 a cat"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSubmission)
	assert.Equal(t, delivery.MsgGenerationFailed, outcome.Reply)

	deliveries := recorder.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, delivery.KindError, deliveries[0].Payload.Kind)

	entries, err := os.ReadDir(svc.Store().Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVideoEndToEnd(t *testing.T) {
	fake := newFakeProvider(t)
	fake.translation = "a cat running in a park"
	fake.pendingPolls = 2
	svc, recorder := newService(t, fake.config(t, "cogview-3"))

	outcome, err := svc.HandleMessage(context.Background(), message("智谱视频 一只在公园里奔跑的猫"))
	require.NoError(t, err)
	assert.Equal(t, models.TaskID("video-task-1"), outcome.TaskID)

	svc.Manager().Wait()

	task, ok := svc.Registry().Get("video-task-1")
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusSuccess, task.Status)
	assert.Equal(t, "session-1", task.Target.SessionID)

	fake.mu.Lock()
	assert.Equal(t, 3, fake.polls)
	require.Len(t, fake.videoRequests, 1)
	assert.Equal(t, "owner-1", fake.videoRequests[0].UserID)
	assert.Equal(t, "a cat running in a park", fake.videoRequests[0].Prompt)
	fake.mu.Unlock()

	artifacts, err := svc.Store().List()
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, models.KindVideo, artifacts[0].Kind)

	videos := recorder.OfKind(delivery.KindVideo)
	require.Len(t, videos, 1)
	assert.Equal(t, artifacts[0].Path, videos[0].Path)
	assert.Empty(t, recorder.OfKind(delivery.KindError))
}

func TestVideoSubmissionFailureCreatesNoTask(t *testing.T) {
	fake := newFakeProvider(t)
	fake.failSubmit = true
	svc, recorder := newService(t, fake.config(t, "cogview-3"))

	_, err := svc.HandleMessage(context.Background(), message("智谱视频 a dog"))
	assert.ErrorIs(t, err, models.ErrSubmission)
	assert.Zero(t, svc.Registry().Len())
	assert.Len(t, recorder.OfKind(delivery.KindError), 1)
}

func TestQueryStatus(t *testing.T) {
	fake := newFakeProvider(t)
	fake.videoStatus = models.ProviderStatusFail
	svc, recorder := newService(t, fake.config(t, "cogview-3"))

	assert.NotNil(t, svc.QueryStatus("owner-1"))
	assert.Empty(t, svc.QueryStatus("owner-1"))

	outcome, err := svc.HandleMessage(context.Background(), message("查询进度"))
	require.NoError(t, err)
	assert.Equal(t, "You have no tasks in progress.", outcome.Reply)

	_, err = svc.HandleMessage(context.Background(), message("智谱视频 a dog"))
	require.NoError(t, err)
	svc.Manager().Wait()

	assert.Equal(t, []models.TaskStatusEntry{{TaskID: "video-task-1", Status: models.TaskStatusFail}},
		svc.QueryStatus("owner-1"))
	assert.Empty(t, svc.QueryStatus("someone-else"))

	outcome, err = svc.HandleMessage(context.Background(), message("查询进度"))
	require.NoError(t, err)
	assert.Equal(t, "Task ID: video-task-1, Status: FAIL", outcome.Reply)

	texts := recorder.OfKind(delivery.KindText)
	assert.Equal(t, outcome.Reply, texts[len(texts)-1].Text)
}

func TestUntriggeredMessageIsIgnored(t *testing.T) {
	fake := newFakeProvider(t)
	svc, recorder := newService(t, fake.config(t, "cogview-3"))

	outcome, err := svc.HandleMessage(context.Background(), message("good morning"))
	require.NoError(t, err)
	assert.False(t, outcome.Handled)
	assert.Empty(t, recorder.Deliveries())
}

func TestHelp(t *testing.T) {
	fake := newFakeProvider(t)
	svc, recorder := newService(t, fake.config(t, "cogview-3"))

	outcome, err := svc.HandleMessage(context.Background(), message("智谱画图"))
	require.NoError(t, err)
	assert.Equal(t, command.ActionHelp, outcome.Action)
	assert.Contains(t, outcome.Reply, "--ar")
	assert.Len(t, recorder.OfKind(delivery.KindText), 1)
}

func TestRunHousekeepingWithoutTTLReturns(t *testing.T) {
	fake := newFakeProvider(t)
	svc, _ := newService(t, fake.config(t, "cogview-3"))
	assert.NoError(t, svc.RunHousekeeping(context.Background()))
}
