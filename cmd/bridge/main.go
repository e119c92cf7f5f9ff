package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-bridge/adapter"
	"chat-bridge/backend"
	"chat-bridge/domain"
	"chat-bridge/domain/event"
	"chat-bridge/internal"
	"chat-bridge/moderation"
	"chat-bridge/observability"
	"chat-bridge/repositories"
	"chat-bridge/runtime/workers"
	"chat-bridge/services"
	"chat-bridge/sink"
	"chat-bridge/transport"
)

const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Local transcript storage (BadgerDB + optional Bluge index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	var index *bluge.Writer
	if config.BlugeFilepath != "" {
		index, err = bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
		if err != nil {
			return exitRuntime, fmt.Errorf("search index opening failed: %w", err)
		}
		defer func() { _ = index.Close() }()
	}
	repository := repositories.NewTranscriptRepository(db, index, log, config.LimitMessages)

	// 3. Moderation
	maskRune, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	moderator, err := moderation.NewModerator(splitWords(config.CensoredWords), maskRune)
	if err != nil {
		return exitConfig, fmt.Errorf("moderation setup failed: %w", err)
	}

	// 4. Session manager wiring
	metrics := observability.NewSessionMetrics()
	ws := transport.NewWebSocket(log, config.BufferSize)
	be := backend.NewClient(log, config.InstanceURL, config.ContactFlowID,
		config.DisplayName, nil, config.RequestTimeout)
	service := services.NewChatService(log, be, ws, moderator, metrics, config.ServiceConfig())

	diskSink := sink.NewDiskSink(repository, log)
	service.Subscribe(diskSink)
	events := sink.NewChannelSink(config.BufferSize)
	service.Subscribe(events)

	chat := adapter.NewChatAdapter(log, service)
	defer chat.Close()

	// 5. Context, signals & supervision
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log)
	sup.Add(service.Worker(), observability.NewReporterWorker(log, metrics, config.MetricInterval))
	go sup.Run(ctx)
	defer sup.Stop()

	// 6. Start the conversation
	if err := chat.StartChat(ctx, nil); err != nil {
		return exitRuntime, fmt.Errorf("chat start failed: %w", err)
	}
	defer func() { _ = chat.EndChat(context.Background()) }()

	go printEvents(ctx, events.Events, config.DisplayName)

	color.Gray.Println("Connected. Type a message, or /history, /attach <file>, /end.")

	// 7. Read stdin until the session or the process ends
	lines := readLines(ctx)
	for {
		select {
		case <-ctx.Done():
			color.Gray.Println("Interrupted.")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if done := handleLine(ctx, chat, line); done {
				return exitOK, nil
			}
		}
	}
}

// handleLine executes one user input. Returns true when the session is over.
func handleLine(ctx context.Context, chat *adapter.ChatAdapter, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false

	case line == "/end":
		if err := chat.EndChat(ctx); err != nil {
			color.Red.Printf("End failed: %v\n", err)
		}
		return true

	case line == "/history":
		if err := chat.LoadHistory(ctx, 50); err != nil {
			color.Red.Printf("History failed: %v\n", err)
			return false
		}
		for _, msg := range chat.Snapshot().Messages {
			printMessage(msg)
		}
		return false

	case strings.HasPrefix(line, "/attach "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/attach "))
		data, err := os.ReadFile(path)
		if err != nil {
			color.Red.Printf("Cannot read %s: %v\n", path, err)
			return false
		}
		attachment := domain.Attachment{Name: filepath.Base(path), Data: data}
		if err := chat.SendAttachment(ctx, attachment); err != nil {
			color.Red.Printf("Attachment failed: %v\n", err)
			return false
		}
		color.Green.Printf("Sent %s (%d bytes)\n", attachment.Name, len(data))
		return false

	default:
		if err := chat.SendMessage(ctx, line); err != nil {
			color.Red.Printf("Send failed: %v\n", err)
		}
		return false
	}
}

// printEvents renders the inbound stream until the context ends.
func printEvents(ctx context.Context, events <-chan event.ChatEvent, selfName string) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			switch evt := e.(type) {
			case event.MessageReceived:
				if evt.Message.DisplayName == selfName {
					continue
				}
				printMessage(evt.Message)
			case event.ParticipantJoined:
				color.Gray.Printf("-- %s joined --\n", evt.DisplayName)
			case event.ParticipantLeft:
				color.Gray.Printf("-- %s left --\n", evt.DisplayName)
			case event.TypingStarted:
				color.Gray.Println("-- typing --")
			case event.ChatEnded:
				color.Yellow.Println("-- chat ended by the other side --")
			case event.ConnectionLost:
				color.Red.Printf("-- connection lost: %s --\n", evt.Reason)
			}
		}
	}
}

func printMessage(msg domain.Message) {
	name := msg.DisplayName
	if name == "" {
		name = string(msg.Role)
	}
	line := fmt.Sprintf("[%s] %s: %s", msg.At.Format("15:04:05"), name, msg.Content)
	switch msg.Role {
	case domain.RoleAgent:
		color.Cyan.Println(line)
	case domain.RoleSystem:
		color.Gray.Println(line)
	default:
		color.Green.Println(line)
	}
}

// readLines pumps stdin into a channel so the main loop can also watch the
// context.
func readLines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func splitWords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if w := strings.TrimSpace(p); w != "" {
			words = append(words, w)
		}
	}
	return words
}
