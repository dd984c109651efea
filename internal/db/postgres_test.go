package db_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fenwick-labs/gatehouse/internal/db"
	"github.com/fenwick-labs/gatehouse/internal/models"
	"github.com/fenwick-labs/gatehouse/internal/utils"
)

func TestPostgresActivityLog(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	cfg := utils.PostgresConfig{DSN: dsn, ConnectTimeout: 5 * time.Second}

	log, err := db.NewPostgres(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	defer log.Close()

	ctx := context.Background()

	if err := log.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if err := log.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema failed: %v", err)
	}

	base := time.Now().UTC()
	events := []models.Activity{
		{UserID: "u1", Email: "alice@example.com", Event: models.ActivityLogin, CreatedAt: base.Add(-2 * time.Minute)},
		{UserID: "u1", Email: "alice@example.com", Event: models.ActivityPasswordUpdated, CreatedAt: base.Add(-time.Minute)},
		{UserID: "u2", Email: "bob@example.com", Event: models.ActivitySignup, CreatedAt: base},
	}
	for _, event := range events {
		if err := log.Record(ctx, event); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	recent, err := log.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 events, got %d", len(recent))
	}
	if recent[0].Event != models.ActivitySignup {
		t.Fatalf("expected newest event first, got %s", recent[0].Event)
	}
	if recent[0].ID == "" {
		t.Fatalf("record must assign an id when missing")
	}
}

func TestPostgresNilSafety(t *testing.T) {
	var log *db.Postgres

	if err := log.Record(context.Background(), models.Activity{Email: "x@example.com", Event: "login"}); err != nil {
		t.Fatalf("nil activity log must swallow records, got %v", err)
	}
	if err := log.Ping(context.Background()); err == nil {
		t.Fatalf("nil activity log must fail ping")
	}
	log.Close()
}
