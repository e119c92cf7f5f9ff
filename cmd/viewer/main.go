package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"chat-bridge/internal"
	"chat-bridge/repositories"
)

// viewer renders the locally archived transcript of a conversation, either
// as a straight dump or filtered through the full-text index.
func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	chatID := flag.String("chat", "", "Chat ID to display")
	search := flag.String("search", "", "Full-text query over the archived messages")
	limit := flag.Int("limit", 20, "Maximum search hits")
	flag.Parse()

	if *chatID == "" {
		log.Fatal("Missing --chat")
	}

	// 2. Open Badger in Read-Only mode
	// Note: BypassLockGuard allows opening if the bridge holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var index *bluge.Writer
	if *search != "" {
		if config.BlugeFilepath == "" {
			log.Fatal("BLUGE_FILEPATH must be set for --search")
		}
		index, err = bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
		if err != nil {
			log.Fatalf("Failed to open search index: %v", err)
		}
		defer index.Close()
	}

	repository := repositories.NewTranscriptRepository(db, index, logger, nil)

	var messages []repositories.DiskMessage
	if *search != "" {
		messages, err = repository.Search(context.Background(), *chatID, *search, *limit)
	} else {
		messages, err = repository.GetMessages(*chatID)
	}
	if err != nil {
		log.Fatalf("Failed to read transcript: %v", err)
	}

	render(messages)
}

func render(messages []repositories.DiskMessage) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Role", "Name", "Kind", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, msg := range messages {
		content := msg.Content
		if len(content) > 80 {
			content = content[:80] + "..."
		}
		table.Append([]string{
			msg.At.Format("15:04:05"),
			msg.Role,
			msg.DisplayName,
			msg.Kind,
			content,
		})
	}
	table.Render()
	fmt.Printf("\n%d message(s)\n", len(messages))
}
