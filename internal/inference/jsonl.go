package inference

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

const maxLineSize = 16 << 20

// ReadConversations decodes one conversation per line. Blank lines are skipped.
func ReadConversations(r io.Reader) ([]Conversation, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out []Conversation
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var conv Conversation
		if err := json.Unmarshal(raw, &conv); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(conv.Messages) == 0 {
			return nil, fmt.Errorf("line %d: conversation has no messages", line)
		}
		for i, m := range conv.Messages {
			if !m.Role.Valid() {
				return nil, fmt.Errorf("line %d: message %d: unknown role %q", line, i, m.Role)
			}
		}
		out = append(out, conv)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}
	return out, nil
}

func WriteConversations(w io.Writer, convs []Conversation) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, conv := range convs {
		if err := enc.Encode(conv); err != nil {
			return fmt.Errorf("conversation %d: %w", i, err)
		}
	}
	return nil
}

func LoadConversations(path string) ([]Conversation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	convs, err := ReadConversations(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return convs, nil
}

func SaveConversations(path string, convs []Conversation) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := WriteConversations(bw, convs); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
