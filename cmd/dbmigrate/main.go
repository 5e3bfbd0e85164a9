package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"chat-guard/internal/config"
	"chat-guard/internal/models"
	"chat-guard/internal/service"
	"chat-guard/internal/storage"

	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	action := flag.String("action", "migrate", "Action to perform (migrate, reset, status, purge, history)")
	keep := flag.Duration("keep", 90*24*time.Hour, "Age of audit records kept by the purge action")
	groupID := flag.String("group", "", "Group id for the history action")
	userID := flag.String("user", "", "User id for the history action")
	limit := flag.Int("limit", 20, "Number of records shown by the history action")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if !cfg.Database.Enabled {
		log.Fatalf("Database is not enabled in configuration")
	}

	if err := storage.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer storage.Close()

	db := storage.DB
	if db == nil {
		log.Fatalf("Failed to get database connection")
	}

	switch *action {
	case "migrate":
		if err := migrateDatabase(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migration completed successfully")
	case "reset":
		if err := resetDatabase(db); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		log.Println("Database reset completed successfully")
	case "status":
		checkStatus(db)
	case "purge":
		service.InitRepositories()
		removed, err := service.PurgeModerationBefore(time.Now().Add(-*keep))
		if err != nil {
			log.Fatalf("Purge failed: %v", err)
		}
		log.Printf("Removed %d audit records older than %v", removed, *keep)
	case "history":
		if *groupID == "" || *userID == "" {
			log.Fatalf("history requires -group and -user")
		}
		service.InitRepositories()
		if err := printHistory(*groupID, *userID, *limit); err != nil {
			log.Fatalf("History failed: %v", err)
		}
	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}

// migrateDatabase performs database migration
func migrateDatabase(db *gorm.DB) error {
	fmt.Println("Migrating database...")

	if err := db.AutoMigrate(&models.ModerationRecord{}); err != nil {
		return fmt.Errorf("failed to migrate ModerationRecord model: %w", err)
	}
	return nil
}

// resetDatabase drops the audit table and recreates it
func resetDatabase(db *gorm.DB) error {
	fmt.Println("Resetting database...")

	fmt.Print("WARNING: This will delete all moderation records! Are you sure? (y/N): ")
	var confirmation string
	fmt.Scanln(&confirmation)

	if confirmation != "y" && confirmation != "Y" {
		return fmt.Errorf("operation cancelled by user")
	}

	if err := db.Migrator().DropTable(&models.ModerationRecord{}); err != nil {
		return fmt.Errorf("failed to drop ModerationRecord table: %w", err)
	}

	return migrateDatabase(db)
}

// checkStatus prints the audit table size per action
func checkStatus(db *gorm.DB) {
	fmt.Println("Checking database status...")

	if !db.Migrator().HasTable(&models.ModerationRecord{}) {
		fmt.Println("❌ ModerationRecord table does not exist")
		return
	}
	fmt.Println("✅ ModerationRecord table exists")

	for _, action := range []string{models.ActionWarn, models.ActionRecall, models.ActionMute} {
		var count int64
		db.Model(&models.ModerationRecord{}).Where("action = ?", action).Count(&count)
		fmt.Printf("   - %s: %d records\n", action, count)
	}
}

// printHistory lists the latest audit records of a user in a group
func printHistory(groupID, userID string, limit int) error {
	records, err := service.GetRecentModeration(groupID, userID, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No moderation records for user %s in group %s\n", userID, groupID)
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s  %-6s  violations=%d  mute=%ds  deleted=%v  message=%s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Action, r.Violations, r.MuteSeconds, r.Deleted, r.MessageID)
		for _, p := range strings.Split(r.Patterns, "\n") {
			fmt.Printf("    %s\n", p)
		}
	}
	return nil
}
