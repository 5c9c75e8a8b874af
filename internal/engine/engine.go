// Package engine adapts hosted model APIs to inference.Engine.
//
// Importing the package registers a builder for every engine type. Builders run only when
// inference.Build is called, so a command that never builds an engine never touches a provider.
package engine

import (
	"encoding/base64"
	"errors"
	"os"
	"strings"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/inference"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

func init() {
	inference.Register(config.EngineRemote, newRemote)
	inference.Register(config.EngineOpenAI, newOpenAI)
	inference.Register(config.EngineAnthropic, newAnthropic)
	inference.Register(config.EngineGemini, newGemini)
	inference.Register(config.EngineOllama, newOllama)
}

// apiKey prefers the configured key and falls back to the first set environment variable.
func apiKey(cfg *config.InferenceConfig, envs ...string) string {
	if k := strings.TrimSpace(cfg.RemoteParams.APIKey); k != "" {
		return k
	}
	for _, env := range envs {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return ""
}

// splitSystem joins the system messages and returns the remaining turns.
func splitSystem(msgs []inference.Message) (string, []inference.Message) {
	var (
		system []string
		rest   = make([]inference.Message, 0, len(msgs))
	)
	for _, m := range msgs {
		if m.Role == inference.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

func dataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
