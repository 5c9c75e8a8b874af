package main

import (
	"errors"
	"io"

	"github.com/chzyer/readline"

	"github.com/Spaarsh/oumi/internal/inference"
)

var stdinIsTTY = isTTY

// newLineReader returns a line editor with history on a terminal and a plain scanner otherwise.
func newLineReader(in io.Reader, out io.Writer) (inference.LineReader, func(), error) {
	if !stdinIsTTY() {
		return inference.NewScanReader(in, out, inference.DefaultPrompt), func() {}, nil
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          inference.DefaultPrompt,
		Stdout:          out,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, nil, err
	}
	return readlineReader{rl}, func() { _ = rl.Close() }, nil
}

type readlineReader struct {
	rl *readline.Instance
}

// Readline treats Ctrl-C like end of input.
func (r readlineReader) Readline() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}
