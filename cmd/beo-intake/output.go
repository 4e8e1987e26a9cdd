// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/beo-intake/internal/client"
	"github.com/pdiddy/beo-intake/internal/history"
	"github.com/pdiddy/beo-intake/pkg/types"
)

// Output formats accepted by --output.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// writeOutput encodes v in the requested format. Text output is produced
// by text.
func writeOutput(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case "", formatText:
		return text(w)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q (want text, json, or yaml)", format)
}

func newClient() *client.Client {
	return client.New(cfg.API, nil, logger)
}

// openHistory opens the receipt database. It returns nil when history is
// disabled by an empty path, or when the database cannot be opened; a
// broken history never blocks a submission.
func openHistory() *history.Store {
	if cfg.History.Path == "" {
		return nil
	}
	store, err := history.NewStore(types.HistoryConfig{Path: cfg.History.Path})
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.History.Path).Msg("history disabled")
		return nil
	}
	return store
}
