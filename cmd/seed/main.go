package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/softadastra-group/softadastra-chat/internal/config"
	"github.com/softadastra-group/softadastra-chat/internal/database"
	"github.com/softadastra-group/softadastra-chat/internal/models"
	"github.com/softadastra-group/softadastra-chat/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting database seeding...")

	db, err := database.NewMySQLConnection(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Migration failed:", err)
	}

	ctx := context.Background()
	userRepo := repository.NewUserRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	seedUsers := []struct {
		username string
		email    string
		role     string
	}{
		{"admin", "admin@softadastra.com", "admin"},
		{"alice", "alice@softadastra.com", "user"},
		{"bob", "bob@softadastra.com", "user"},
		{"charlie", "charlie@softadastra.com", "user"},
	}

	ids := make(map[string]uint)
	for _, u := range seedUsers {
		hashed, _ := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.DefaultCost)
		user := &models.User{
			Username: u.username,
			Email:    u.email,
			Password: string(hashed),
			Role:     u.role,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			slog.Warn("User might already exist", "username", u.username, "error", err)
			if existing, ferr := userRepo.FindByEmail(ctx, u.email); ferr == nil {
				ids[u.username] = existing.ID
			}
			continue
		}
		ids[u.username] = user.ID
		slog.Info("Created user", "username", u.username, "id", user.ID)
	}

	// A demo conversation so a fresh environment has something to render.
	if alice, bob := ids["alice"], ids["bob"]; alice != 0 && bob != 0 {
		thread, created, err := threadRepo.ResolveOrCreate(ctx, alice, bob)
		if err != nil {
			slog.Warn("Could not create demo thread", "error", err)
		} else if created {
			lines := []struct {
				sender  uint
				content string
			}{
				{alice, "Hi! Is the phone still available?"},
				{bob, "Yes, it is. Want to meet tomorrow?"},
				{alice, "Perfect, see you at noon."},
			}
			for _, l := range lines {
				msg := &models.Message{
					ThreadID:  thread.ID,
					SenderID:  l.sender,
					Content:   l.content,
					CreatedAt: time.Now(),
				}
				if err := messageRepo.Create(ctx, msg); err != nil {
					slog.Warn("Could not seed message", "error", err)
				}
			}
			slog.Info("Created demo thread", "threadID", thread.ID)
		}
	}

	slog.Info("Database seeding completed")
}
