package main

import (
	"log"
	"net/http"

	"github.com/jlpedu/enroll/internal/config"
	"github.com/jlpedu/enroll/internal/db"
	"github.com/jlpedu/enroll/internal/handlers"
	"github.com/jlpedu/enroll/internal/notify"
	"github.com/jlpedu/enroll/internal/web"
)

func main() {
	cfg := config.Load()

	if err := db.Init(cfg.DBPath); err != nil {
		log.Fatalf("db init: %v", err)
	}

	var sender notify.Sender = notify.Noop{}
	if cfg.SMS.ServiceID != "" && cfg.SMS.AccessKey != "" && cfg.SMS.SecretKey != "" {
		sender = notify.NewSENS(cfg.SMS.ServiceID, cfg.SMS.AccessKey, cfg.SMS.SecretKey, cfg.SMS.From)
	} else {
		log.Printf("SENS credentials not set, SMS runs in log-only mode")
	}

	handlers.Configure(cfg.JWTSecret, cfg.BcryptCost, sender)
	notify.StartReminderLoop(db.Conn(), sender)

	r := web.Router()
	log.Printf("enrollment server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Fatal(err)
	}
}
