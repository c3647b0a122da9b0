package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"todo-app/internal/bot"
	"todo-app/internal/config"
	"todo-app/internal/repository"
	"todo-app/internal/service"
	"todo-app/internal/state"
	"todo-app/internal/ui"
)

func main() {
	mode := "bot"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}
	if err := run(mode); err != nil {
		log.Fatalf("todoapp: %v", err)
	}
}

func run(mode string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if mode == "tui" {
		// The terminal belongs to the view, so logs go to a file.
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	persister := service.NewSnapshotPersister(repository.NewUserRepository(db), log.Default())
	store := state.New(ctx, state.Options{
		Persister: persister,
		Logger:    log.Default(),
		Strict:    cfg.Debug,
	})
	defer store.Close()

	switch mode {
	case "tui":
		return ui.RunTUI(ctx, store, cfg.ReadAloudDelay)
	case "bot":
		return runBot(ctx, cfg, store)
	default:
		return fmt.Errorf("unknown mode %q (use bot or tui)", mode)
	}
}

func runBot(ctx context.Context, cfg config.Config, store *state.Store) error {
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	telegramBot, err := bot.New(cfg.TelegramToken, store, cfg)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	defer telegramBot.Close()
	store.SetEffectHandler(telegramBot.HandleEffect)
	defer store.SetEffectHandler(nil)

	scheduler := service.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleReport(cfg.ReminderTime, cfg.ReportInterval(), func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReport(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("report: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule reports: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Todo bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped with error: %w", err)
	}
	log.Println("Shutdown complete.")
	return nil
}
