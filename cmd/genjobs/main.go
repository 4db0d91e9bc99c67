package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/kelsos/genjobs/internal/api"
	"github.com/kelsos/genjobs/internal/client"
	"github.com/kelsos/genjobs/internal/config"
	"github.com/kelsos/genjobs/internal/delivery"
	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
	"github.com/kelsos/genjobs/internal/process"
	"github.com/kelsos/genjobs/internal/services"
	"github.com/kelsos/genjobs/internal/storage"
	"github.com/kelsos/genjobs/internal/sweeper"
	"github.com/kelsos/genjobs/internal/tui"
	"github.com/kelsos/genjobs/internal/utils"
)

const shutdownGrace = 15 * time.Second

func loadConfig(path string) *config.Config {
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatal("Refusing to start: %v", err)
	}
	return cfg
}

func newSweeper(cfg *config.Config, store *storage.ResultStore) *sweeper.Sweeper {
	return sweeper.New(store, cfg.Retention(), cfg.SweepInterval())
}

func serve(cfg *config.Config, withTUI bool) error {
	webhookClient := client.NewAPIClient("", cfg.HTTPTimeout())
	channel := delivery.NewWebhookChannel(webhookClient, cfg.WebhookURL, delivery.LogChannel{})

	svc := services.NewGenerationService(cfg, channel)
	sw := newSweeper(cfg, svc.Store())
	server := api.NewServer(cfg.ListenAddr, api.NewRouter(svc))

	runners := []process.Runner{
		{Name: "http intake", Run: server.Run},
		{Name: "storage sweeper", Run: sw.Run},
		{Name: "registry housekeeping", Run: svc.RunHousekeeping},
	}
	if withTUI {
		monitor := tui.NewTaskMonitor(svc, sw)
		runners = append(runners, process.Runner{Name: "monitor", Run: monitor.Run})
	}

	err := process.Run(context.Background(), runners...)
	svc.Shutdown(shutdownGrace)

	if errors.Is(err, tui.ErrQuit) {
		return nil
	}
	return err
}

// runOnce handles one message with an in-memory channel and prints every
// reply. Video jobs are polled until terminal.
func runOnce(cfg *config.Config, trigger string, args []string) error {
	recorder := delivery.NewRecorder()
	svc := services.NewGenerationService(cfg, recorder)

	msg := services.Message{
		OwnerID: "cli",
		Target:  models.DeliveryTarget{SessionID: "cli"},
		Content: trigger + " " + strings.Join(args, " "),
	}

	_, err := svc.HandleMessage(context.Background(), msg)
	svc.Manager().Wait()

	for _, d := range recorder.Deliveries() {
		switch d.Payload.Kind {
		case delivery.KindImage, delivery.KindVideo:
			fmt.Printf("%s saved to %s\n", d.Payload.Kind, d.Payload.Path)
		default:
			fmt.Println(d.Payload.Text)
		}
	}
	return err
}

func main() {
	_, _ = maxprocs.Set()
	utils.LoadEnvironment()

	var (
		configPath string
		withTUI    bool
	)

	rootCmd := &cobra.Command{
		Use:   "genjobs",
		Short: "Submit, track and deliver asynchronous generation jobs",
		Long: `genjobs accepts image and video generation requests, polls the provider
for video jobs in the background, stores the results and reclaims old files.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cmd.Name() == "serve" && withTUI {
				if _, err := logger.InitFileOnly(); err != nil {
					logger.Init()
					logger.Error("Failed to open log file: %v", err)
				}
				return
			}
			logger.Init()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP intake, the pollers and the storage sweeper",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(configPath)
			if err := serve(cfg, withTUI); err != nil {
				logger.Fatal("Service stopped with error: %v", err)
			}
			logger.Info("Service stopped")
		},
	}
	serveCmd.Flags().BoolVarP(&withTUI, "tui", "", false, "Show the terminal task monitor (logs go to logs/)")

	imageCmd := &cobra.Command{
		Use:   "image <prompt>",
		Short: "Generate one image and store it",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(configPath)
			if err := runOnce(cfg, cfg.ImageCommand, args); err != nil {
				logger.Fatal("Image generation failed: %v", err)
			}
		},
	}

	videoCmd := &cobra.Command{
		Use:   "video <prompt>",
		Short: "Submit one video job and wait until it finishes",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(configPath)
			if err := runOnce(cfg, cfg.VideoCommand, args); err != nil {
				logger.Fatal("Video generation failed: %v", err)
			}
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stored artifacts older than the retention threshold",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(configPath)
			removed, err := newSweeper(cfg, storage.NewResultStore(cfg.StoragePath)).Sweep(time.Now())
			if err != nil {
				logger.Fatal("Sweep failed: %v", err)
			}
			logger.Info("Sweep removed %d files", removed)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.json (default: ./config.json or $GENJOBS_CONFIG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(imageCmd)
	rootCmd.AddCommand(videoCmd)
	rootCmd.AddCommand(sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to execute command: %v", err)
	}
	logger.Close()
}
