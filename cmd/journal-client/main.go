package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/client"
	"github.com/satriahrh/voicejournal/internal/frame"
)

func main() {
	var (
		server    = flag.String("server", "http://localhost:8080", "journal server base URL")
		useWS     = flag.Bool("ws", false, "stream turns over the websocket endpoint instead of HTTP")
		userID    = flag.String("user", "default_user", "user id sent with every turn")
		language  = flag.String("lang", "", "language code of spoken turns")
		text      = flag.String("text", "", "send a single text turn and exit")
		audioPath = flag.String("audio", "", "send a single recorded turn from this file and exit")
		outDir    = flag.String("out", "", "write reply audio to this directory instead of playing it")
		ffplay    = flag.String("ffplay", "ffplay", "path to the ffplay binary")
		volume    = flag.Int("volume", 80, "ffplay volume (0-100)")
		verbose   = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var transport client.Transport = client.NewHTTPTransport(*server)
	if *useWS {
		wsURL := "ws" + strings.TrimPrefix(strings.TrimSuffix(*server, "/"), "http") + "/ws"
		transport = client.NewWebSocketTransport(wsURL)
	}

	sinks := client.FFPlaySinkFactory(client.FFPlayConfig{Path: *ffplay, Volume: *volume}, logger)
	if *outDir != "" {
		sinks = client.FileSinkFactory(*outDir, ".mp3", logger)
	}

	conv := client.NewConversation(transport, sinks, *userID, logger,
		client.WithMetadataHandler(printReply))
	defer conv.Close()

	if *text != "" || *audioPath != "" {
		input := client.TurnInput{Text: *text, LanguageCode: *language}
		if input.Text == "" {
			audio, err := os.ReadFile(*audioPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "read %s: %v\n", *audioPath, err)
				os.Exit(1)
			}
			input.Audio = audio
		}
		if err := sendAndWait(ctx, conv, input); err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Session %s. Type a message, /new for a new conversation, /quit to exit.\n", conv.SessionID())
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case l, ok := <-lines:
			if !ok {
				waitPlayback(ctx, conv)
				return
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/quit":
			return
		case "/new":
			fmt.Printf("Started session %s\n", conv.StartNew())
			continue
		}

		// Playback of the reply continues while the next line is typed; a new line interrupts it
		if _, err := conv.Send(ctx, client.TurnInput{Text: line, LanguageCode: *language}); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Printf("[error] %v\n", err)
			fmt.Printf("assistant: %s\n", client.FailureReply)
		}
	}
}

func sendAndWait(ctx context.Context, conv *client.Conversation, input client.TurnInput) error {
	result, err := conv.Send(ctx, input)
	if err != nil {
		return err
	}
	return result.Playback.Wait(ctx)
}

func waitPlayback(ctx context.Context, conv *client.Conversation) {
	if p := conv.Playback(); p != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		_ = p.Wait(ctx)
	}
}

func printReply(metadata frame.Metadata) {
	if metadata.TranscribedText != "" {
		fmt.Printf("you said: %s\n", metadata.TranscribedText)
	}
	fmt.Printf("assistant: %s\n", metadata.Response)
	fmt.Printf("  [mode=%s entries=%d]\n", metadata.Mode, metadata.EntryCount)
}

func newLogger(verbose bool) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	if !verbose {
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
