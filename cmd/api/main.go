package main

import (
	"context"
	"log"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/db"
	httpSrv "github.com/Yousif-AlEshari/Simulated-Patient/internal/http"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/migrations"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/storage"
)

func main() {
	_ = godotenv.Load()

	// Run embedded migrations (idempotent)
	migrations.Run()

	// Start services
	dbase := db.MustOpen()
	s3c, err := storage.New(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	asq := asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("REDIS_ADDR")})
	srv := httpSrv.NewServer(dbase, s3c, asq)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
