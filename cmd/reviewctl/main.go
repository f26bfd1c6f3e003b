package main

import (
	"fmt"
	"log"
	"os"

	"officer-review-api/config"
	"officer-review-api/models"
	"officer-review-api/services"
)

func main() {
	cfg := config.Load()
	app := &cliApp{cfg: cfg, out: os.Stdout}
	app.open = func() error {
		db, err := config.OpenDB(cfg)
		if err != nil {
			return err
		}
		if err := models.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		templates, err := config.LoadTemplates(cfg.Workflow.TemplatesPath)
		if err != nil {
			return err
		}
		var notifier services.Notifier = services.LogNotifier{}
		if mailer := config.NewMailer(cfg.SMTP); mailer.Configured() {
			mailNotifier, err := services.NewMailNotifier(mailer, templates)
			if err != nil {
				return err
			}
			notifier = mailNotifier
		}
		var summarizer services.Summarizer
		if client := services.NewHTTPSummarizer(cfg.Summary); client != nil {
			summarizer = client
		}
		app.stack = services.NewStack(db, cfg, notifier, summarizer, nil)
		return nil
	}

	if err := newRootCmd(app).Execute(); err != nil {
		log.Printf("reviewctl: %v", err)
		os.Exit(1)
	}
}
