package inference

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/logger"
)

const DefaultPrompt = "Enter your input prompt: "

// LineReader yields one line of user input per call. io.EOF ends the session.
type LineReader interface {
	Readline() (string, error)
}

type InteractiveOptions struct {
	Input  LineReader
	Output io.Writer
	// Image is attached to every user turn.
	Image        []byte
	SystemPrompt string
}

// RunInteractive answers one prompt at a time until the input is exhausted or the user types
// exit or quit. Each prompt starts a fresh conversation. A failed turn is reported and the
// session continues.
func RunInteractive(ctx context.Context, eng Engine, cfg *config.InferenceConfig, opts InteractiveOptions) error {
	log := logger.FromContext(ctx)
	if opts.Input == nil {
		return errors.New("interactive input is not set")
	}
	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := opts.Input.Readline()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		prompt := strings.TrimSpace(line)
		switch strings.ToLower(prompt) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		conv := NewConversation(opts.SystemPrompt, prompt, opts.Image)
		req := ResolveRequest(RequestOptions{Messages: conv.Messages}, cfg)
		res, err := Generate(ctx, eng, &req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("inference failed", "error", err)
			_, _ = fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		log.Debug("turn complete", "tokens", res.Stats.TokensGenerated, "elapsed", res.Stats.Duration)
		_, _ = fmt.Fprintln(out, res.Text)
	}
}

// NewConversation builds a single-turn conversation with an optional system prompt and image.
func NewConversation(systemPrompt, prompt string, image []byte) Conversation {
	msgs := make([]Message, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt, Image: image})
	return Conversation{Messages: msgs}
}

// ScanReader reads lines from a plain stream, writing the prompt before each read.
type ScanReader struct {
	sc     *bufio.Scanner
	out    io.Writer
	prompt string
}

func NewScanReader(r io.Reader, out io.Writer, prompt string) *ScanReader {
	if out == nil {
		out = io.Discard
	}
	return &ScanReader{sc: bufio.NewScanner(r), out: out, prompt: prompt}
}

func (s *ScanReader) Readline() (string, error) {
	if s.prompt != "" {
		_, _ = io.WriteString(s.out, s.prompt)
	}
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSuffix(s.sc.Text(), "\r"), nil
}
