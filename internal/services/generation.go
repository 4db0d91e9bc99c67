package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kelsos/genjobs/internal/async"
	"github.com/kelsos/genjobs/internal/client"
	"github.com/kelsos/genjobs/internal/command"
	"github.com/kelsos/genjobs/internal/config"
	"github.com/kelsos/genjobs/internal/delivery"
	"github.com/kelsos/genjobs/internal/download"
	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
	"github.com/kelsos/genjobs/internal/provider"
	"github.com/kelsos/genjobs/internal/registry"
	"github.com/kelsos/genjobs/internal/storage"
)

const noTasksReply = "You have no tasks in progress."

// Message is one inbound chat message.
type Message struct {
	OwnerID string
	IsGroup bool
	Target  models.DeliveryTarget
	Content string
}

// Outcome reports what HandleMessage did. Handled is false when the message
// carried no trigger phrase.
type Outcome struct {
	Handled bool           `json:"handled"`
	Action  command.Action `json:"action,omitempty"`
	TaskID  models.TaskID  `json:"task_id,omitempty"`
	Path    string         `json:"path,omitempty"`
	Reply   string         `json:"reply,omitempty"`
}

// GenerationService orchestrates submission, tracking and delivery of jobs.
type GenerationService struct {
	config     *config.Config
	triggers   command.Triggers
	translator *provider.Translator
	submitter  *provider.Submitter
	downloader *download.Downloader
	store      *storage.ResultStore
	registry   *registry.Registry
	manager    *async.TaskManager
	channel    delivery.Channel
}

// NewGenerationService creates a service with all dependencies built from cfg.
func NewGenerationService(cfg *config.Config, channel delivery.Channel) *GenerationService {
	apiClient := client.NewAPIClient(cfg.APIKey, cfg.HTTPTimeout())
	translateClient := client.NewAPIClient(cfg.TranslateAPIKey, cfg.HTTPTimeout())
	downloader := download.NewDownloader(&http.Client{Timeout: cfg.HTTPTimeout()})
	store := storage.NewResultStore(cfg.StoragePath)
	reg := registry.New()
	submitter := provider.NewSubmitter(cfg, apiClient)

	manager := async.NewTaskManager(submitter.Videos, reg, store, downloader, channel, async.Options{
		PollInterval:    cfg.PollInterval,
		MaxPollAttempts: cfg.MaxPollAttempts,
	})

	return &GenerationService{
		config: cfg,
		triggers: command.Triggers{
			Image: cfg.ImageCommand,
			Video: cfg.VideoCommand,
			Query: cfg.QueryCommand,
		},
		translator: provider.NewTranslator(translateClient, cfg.TranslateAPIURL, cfg.TranslateModel),
		submitter:  submitter,
		downloader: downloader,
		store:      store,
		registry:   reg,
		manager:    manager,
		channel:    channel,
	}
}

func (s *GenerationService) Config() *config.Config { return s.config }
func (s *GenerationService) Registry() *registry.Registry { return s.registry }
func (s *GenerationService) Manager() *async.TaskManager { return s.manager }
func (s *GenerationService) Store() *storage.ResultStore { return s.store }
func (s *GenerationService) Triggers() command.Triggers { return s.triggers }

// HandleMessage runs the command in msg. Image generation blocks until the
// image is stored and delivered; video generation returns once the task is
// tracked.
func (s *GenerationService) HandleMessage(ctx context.Context, msg Message) (Outcome, error) {
	cmd, ok := command.Parse(msg.Content, s.triggers)
	if !ok {
		return Outcome{}, nil
	}

	logger.Info("Received %s request from %s: %s", cmd.Action, msg.OwnerID, msg.Content)

	switch cmd.Action {
	case command.ActionImage:
		return s.generateImage(ctx, msg, cmd.Prompt)
	case command.ActionVideo:
		return s.submitVideo(ctx, msg, cmd.Prompt)
	case command.ActionQuery:
		reply := FormatStatus(s.QueryStatus(msg.OwnerID))
		s.send(ctx, msg, delivery.Text(msg.OwnerID, msg.IsGroup, reply))
		return Outcome{Handled: true, Action: cmd.Action, Reply: reply}, nil
	default:
		reply := command.HelpText(s.triggers)
		s.send(ctx, msg, delivery.Text(msg.OwnerID, msg.IsGroup, reply))
		return Outcome{Handled: true, Action: command.ActionHelp, Reply: reply}, nil
	}
}

func (s *GenerationService) generateImage(ctx context.Context, msg Message, prompt string) (Outcome, error) {
	outcome := Outcome{Handled: true, Action: command.ActionImage}

	size, prompt := command.ExtractSize(prompt)
	translated := s.translator.Translate(ctx, prompt)

	handle, err := s.submitter.Submit(ctx, provider.JobRequest{
		Kind:    models.KindImage,
		Prompt:  translated,
		Size:    size,
		OwnerID: msg.OwnerID,
	})
	if err != nil {
		return s.submissionFailed(ctx, msg, outcome, err)
	}

	outcome.Reply = ackText(translated)
	s.send(ctx, msg, delivery.Text(msg.OwnerID, msg.IsGroup, outcome.Reply))

	artifact, err := s.store.Save(models.KindImage, func(w io.Writer) error {
		_, err := s.downloader.Fetch(ctx, handle.ResultURL, w)
		return err
	})
	if err != nil {
		logger.Error("Failed to store image for %s: %v", msg.OwnerID, err)
		s.send(ctx, msg, delivery.Failure(msg.OwnerID, msg.IsGroup, delivery.MsgImageSendFailed))
		return outcome, fmt.Errorf("%w: %w", models.ErrDelivery, err)
	}

	outcome.Path = artifact.Path
	s.send(ctx, msg, delivery.Artifact(models.KindImage, msg.OwnerID, msg.IsGroup, artifact.Path))
	return outcome, nil
}

func (s *GenerationService) submitVideo(ctx context.Context, msg Message, prompt string) (Outcome, error) {
	outcome := Outcome{Handled: true, Action: command.ActionVideo}

	translated := s.translator.Translate(ctx, prompt)

	handle, err := s.submitter.Submit(ctx, provider.JobRequest{
		Kind:    models.KindVideo,
		Prompt:  translated,
		OwnerID: msg.OwnerID,
	})
	if err != nil {
		return s.submissionFailed(ctx, msg, outcome, err)
	}

	task, err := s.registry.Create(handle.TaskID, msg.OwnerID, msg.IsGroup, msg.Target, translated)
	if err != nil {
		return s.submissionFailed(ctx, msg, outcome, err)
	}
	outcome.TaskID = task.ID

	outcome.Reply = ackText(translated)
	s.send(ctx, msg, delivery.Text(msg.OwnerID, msg.IsGroup, outcome.Reply))

	if err := s.manager.Track(task); err != nil {
		logger.Error("Failed to start polling task %s: %v", task.ID, err)
		s.send(ctx, msg, delivery.Failure(msg.OwnerID, msg.IsGroup, delivery.MsgQueryFailed))
		return outcome, err
	}
	return outcome, nil
}

func (s *GenerationService) submissionFailed(ctx context.Context, msg Message, outcome Outcome, err error) (Outcome, error) {
	logger.Error("Submission for %s failed: %v", msg.OwnerID, err)
	outcome.Reply = delivery.MsgGenerationFailed
	s.send(ctx, msg, delivery.Failure(msg.OwnerID, msg.IsGroup, outcome.Reply))
	return outcome, err
}

func (s *GenerationService) send(ctx context.Context, msg Message, payload delivery.Payload) {
	if err := s.channel.Deliver(ctx, msg.Target, payload); err != nil {
		logger.Error("Failed to deliver %s reply to %s: %v", payload.Kind, msg.OwnerID, err)
	}
}

// Task looks up one tracked task.
func (s *GenerationService) Task(id models.TaskID) (models.Task, bool) {
	return s.registry.Get(id)
}

// QueryStatus lists the owner's tasks. An owner without tasks gets an empty
// slice.
func (s *GenerationService) QueryStatus(ownerID string) []models.TaskStatusEntry {
	tasks := s.registry.ListByOwner(ownerID)
	entries := make([]models.TaskStatusEntry, 0, len(tasks))
	for _, task := range tasks {
		entries = append(entries, models.TaskStatusEntry{TaskID: task.ID, Status: task.Status})
	}
	return entries
}

// FormatStatus renders a status query answer, one task per line.
func FormatStatus(entries []models.TaskStatusEntry) string {
	if len(entries) == 0 {
		return noTasksReply
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("Task ID: %s, Status: %s", e.TaskID, e.Status))
	}
	return strings.Join(lines, "\n")
}

func ackText(translated string) string {
	return "Task submitted.\nTranslated prompt: " + translated
}

// RunHousekeeping prunes finished tasks older than the configured TTL until
// ctx is done. It returns immediately when no TTL is configured.
func (s *GenerationService) RunHousekeeping(ctx context.Context) error {
	ttl := s.config.TaskTTL()
	if ttl <= 0 {
		return nil
	}

	interval := ttl / 4
	if interval > time.Hour {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.registry.Prune(now.Add(-ttl))
		}
	}
}

// Shutdown stops all pollers and waits up to grace for them to exit.
func (s *GenerationService) Shutdown(grace time.Duration) {
	s.manager.Stop()
	if !s.manager.WaitTimeout(grace) {
		logger.Warn("%d pollers still running after %v", s.manager.Active(), grace)
	}
}
