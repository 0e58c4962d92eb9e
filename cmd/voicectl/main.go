// Command voicectl drives push-to-talk turns against a running agent from a
// terminal. Each audio file argument is sent as one recording:
//
//	go run ./cmd/voicectl -server http://localhost:8000 hello.wav followup.webm
//
// Replies are played on the default output device unless -mute is set.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"voiceagent/client"
	"voiceagent/core"
)

func main() {
	var (
		server      string
		sessionFile string
		newSession  bool
		showHistory bool
		showHealth  bool
		mute        bool
		follow      bool
	)
	home, _ := os.UserHomeDir()
	flag.StringVar(&server, "server", getEnv("VOICEAGENT_URL", "http://localhost:8000"), "agent base URL")
	flag.StringVar(&sessionFile, "session-file", filepath.Join(home, ".voicectl", "session"), "where the session key is kept")
	flag.BoolVar(&newSession, "new-session", false, "start a fresh conversation before sending")
	flag.BoolVar(&showHistory, "history", false, "print the conversation and exit")
	flag.BoolVar(&showHealth, "health", false, "print server health and exit")
	flag.BoolVar(&mute, "mute", false, "do not open an audio output device")
	flag.BoolVar(&follow, "stages", true, "show pipeline stages while a turn is processed")
	flag.Parse()

	logger := core.GetLogger()
	api, err := client.NewHTTPClient(server, nil)
	if err != nil {
		fatal(err)
	}
	keys := client.NewKeyStore(sessionFile)
	key, err := keys.Load()
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case showHealth:
		report, err := api.Health(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("status: %s\n", report.Status)
		for name, state := range report.Services {
			fmt.Printf("  %-16s %s\n", name, state)
		}
		return
	case showHistory:
		h, err := api.History(ctx, key)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("session %s (%s)\n", h.SessionID, h.Status)
		for _, m := range h.Messages {
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format(time.Kitchen), m.Role, m.Content)
		}
		return
	}

	mic := newFileMicrophone(flag.Args())
	var player client.Player = newSpeaker()
	if mute {
		player = mutedSpeaker{newSpeaker()}
	}

	changes := make(chan client.Model, 256)
	ctrl := client.NewController(client.ControllerConfig{
		SessionKey: key,
		Microphone: mic,
		Player:     player,
		API:        api,
		Keys:       keys,
		Logger:     logger,
		OnChange: func(m client.Model) {
			select {
			case changes <- m:
			case <-ctx.Done():
			}
		},
	})
	go ctrl.Run(ctx)
	go client.NewHealthMonitor(api, 30*time.Second, ctrl.Dispatch, logger).Run(ctx)
	if follow {
		stream, err := client.NewStageStream(server, ctrl.Dispatch, logger)
		if err != nil {
			fatal(err)
		}
		go stream.Follow(ctx, func() string { return ctrl.Model().SessionKey })
	}

	if newSession {
		ctrl.NewSession()
		m, ok := waitUntil(ctx, changes, func(m client.Model) bool { return m.SessionKey != key })
		if !ok {
			return
		}
		fmt.Printf("new session %s\n", m.SessionKey)
	}

	shown := len(ctrl.Model().Chat)
	for mic.Remaining() > 0 {
		m, ok := waitUntil(ctx, changes, recordingStarted(ctrl.Begin()))
		if !ok {
			return
		}
		if m.State == client.StateRecording {
			ctrl.Stop()
			stage := ""
			m, ok = waitUntil(ctx, changes, func(m client.Model) bool {
				if m.Attempt != nil && m.Attempt.Stage != "" && m.Attempt.Stage != stage {
					stage = m.Attempt.Stage
					fmt.Printf("  … %s\n", stage)
				}
				return m.State == client.StateIdle
			})
			if !ok {
				return
			}
		}
		for _, entry := range m.Chat[shown:] {
			fmt.Printf("%s: %s\n", entry.Role, entry.Text)
		}
		shown = len(m.Chat)
		if m.Notice != nil {
			fmt.Printf("(%s) %s\n", m.Notice.Level, m.Notice.Message)
		}
	}
}

// recordingStarted matches once attempt id is recording, or once it has
// ended before recording began. Snapshots of earlier attempts are skipped.
func recordingStarted(id string) func(client.Model) bool {
	seen := false
	return func(m client.Model) bool {
		if m.Attempt != nil && m.Attempt.ID == id {
			seen = true
			return m.State == client.StateRecording
		}
		return seen && m.State == client.StateIdle
	}
}

func waitUntil(ctx context.Context, changes <-chan client.Model, pred func(client.Model) bool) (client.Model, bool) {
	for {
		select {
		case <-ctx.Done():
			return client.Model{}, false
		case m := <-changes:
			if pred(m) {
				return m, true
			}
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "voicectl:", err)
	os.Exit(1)
}
