package main

import (
	"context"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/db"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/judge"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/storage"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/worker"
)

func main() {
	_ = godotenv.Load()

	// Start services
	dbx := db.MustOpen()
	s3c, err := storage.New(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	judgeClient := judge.NewClient(judge.ConfigFromEnv())
	if err := worker.Run(os.Getenv("REDIS_ADDR"), dbx, s3c, judgeClient); err != nil {
		log.Fatal(err)
	}
}
