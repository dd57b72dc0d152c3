package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// renderSink renders engine output segments as terminal markdown.
type renderSink struct {
	renderer *glamour.TermRenderer
}

func newRenderSink() *renderSink {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return &renderSink{}
	}
	return &renderSink{renderer: renderer}
}

func (s *renderSink) Write(segment string) {
	if s.renderer != nil {
		if out, err := s.renderer.Render(segment); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(segment)
}

// runInteractiveChat is the default entry point: a read-classify-respond
// loop against one session. Ctrl-C during execution cancels the running
// plan; remaining steps are reported as skipped.
func runInteractiveChat() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sink := newRenderSink()
	handle, err := buildEngine(ctx, sink)
	if err != nil {
		return err
	}
	defer handle.close()

	fmt.Println(headerStyle.Render("dirigent") + dimStyle.Render("  — describe a task; nothing runs until you confirm"))
	fmt.Println(dimStyle.Render("Commands: /quit, /clear"))
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}

		utterance := strings.TrimSpace(line)
		switch utterance {
		case "":
			continue
		case "/quit", "/exit":
			handle.engine.Flush(sessionID)
			fmt.Println(dimStyle.Render("bye"))
			return nil
		case "/clear":
			handle.engine.Conversation(sessionID).Clear()
			fmt.Println(dimStyle.Render("conversation cleared"))
			continue
		}

		if err := handle.engine.Handle(ctx, sessionID, utterance); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println(dimStyle.Render("interrupted"))
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}
