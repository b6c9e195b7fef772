package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileStore keeps one YAML document per streamer
type FileStore struct {
	pathFormat string
}

type fileDocument struct {
	State fileState `yaml:"state"`
}

type fileState struct {
	DeckMsg       *string   `yaml:"deck_msg,omitempty"`
	InternalState *uint32   `yaml:"internal_state,omitempty"`
	CurrentWins   *int      `yaml:"current_wins,omitempty"`
	CurrentLosses *int      `yaml:"current_losses,omitempty"`
	Data          *fileData `yaml:"data,omitempty"`
}

type fileData struct {
	Deck *string `yaml:"deck,omitempty"`
}

// rawDocument reads every scalar as text so a malformed number only loses
// its own field
type rawDocument struct {
	State struct {
		DeckMsg       *string `yaml:"deck_msg"`
		InternalState *string `yaml:"internal_state"`
		CurrentWins   *string `yaml:"current_wins"`
		CurrentLosses *string `yaml:"current_losses"`
		Data          struct {
			Deck *string `yaml:"deck"`
		} `yaml:"data"`
	} `yaml:"state"`
}

// NewFileStore creates a store writing to fmt.Sprintf(pathFormat, streamer)
func NewFileStore(pathFormat string) *FileStore {
	return &FileStore{pathFormat: pathFormat}
}

// Path returns the state file location for streamer
func (s *FileStore) Path(streamer string) string {
	return fmt.Sprintf(s.pathFormat, streamer)
}

// Load reads the state file. Malformed fields are dropped individually.
func (s *FileStore) Load(_ context.Context, streamer string) (State, error) {
	path := s.Path(streamer)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, ErrNotFound
		}
		return State{}, fmt.Errorf("failed to read state file: %w", err)
	}

	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		var typeErr *yaml.TypeError
		if !errors.As(err, &typeErr) {
			return State{}, fmt.Errorf("failed to parse state file: %w", err)
		}
		slog.Warn("state file has malformed fields", "path", path, "errors", typeErr.Errors)
	}

	fields := make(map[string]string)
	for key, v := range map[string]*string{
		KeyDeckMsg:       doc.State.DeckMsg,
		KeyInternalState: doc.State.InternalState,
		KeyWins:          doc.State.CurrentWins,
		KeyLosses:        doc.State.CurrentLosses,
		KeyDeck:          doc.State.Data.Deck,
	} {
		if v != nil {
			fields[key] = *v
		}
	}
	return stateFromFields(fields), nil
}

// Save writes the state to a temporary file and renames it into place
func (s *FileStore) Save(_ context.Context, streamer string, st State) error {
	doc := fileDocument{State: fileState{
		DeckMsg:       st.DeckMsg,
		CurrentWins:   st.Wins,
		CurrentLosses: st.Losses,
	}}
	if st.InternalState != nil {
		doc.State.InternalState = ptr(uint32(*st.InternalState))
	}
	if st.EncodedDeck != nil {
		doc.State.Data = &fileData{Deck: st.EncodedDeck}
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	path := s.Path(streamer)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	slog.Debug("state saved", "backend", "file", "path", path)
	return nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}
