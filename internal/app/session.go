package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Session is what the viewer remembers between runs.
type Session struct {
	// Resource is the last opened model.
	Resource string

	// SelectedIDs is the selection at shutdown.
	SelectedIDs []string

	// FocusedID is the focused item at shutdown.
	FocusedID string

	// SavedAt is when the session was written.
	SavedAt time.Time
}

// SaveSession writes the session file, creating parent directories as
// needed.
func SaveSession(path string, sess Session) error {
	data := []byte(`{}`)
	var err error
	if data, err = sjson.SetBytes(data, "resource", sess.Resource); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if data, err = sjson.SetBytes(data, "focused_id", sess.FocusedID); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ids := sess.SelectedIDs
	if ids == nil {
		ids = []string{}
	}
	if data, err = sjson.SetBytes(data, "selected_ids", ids); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if data, err = sjson.SetBytes(data, "saved_at", sess.SavedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// LoadSession reads a previously saved session. A missing file returns
// an empty session and no error.
func LoadSession(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return Session{}, fmt.Errorf("session file %s is not valid JSON", path)
	}

	var sess Session
	sess.Resource = gjson.GetBytes(data, "resource").String()
	sess.FocusedID = gjson.GetBytes(data, "focused_id").String()
	for _, id := range gjson.GetBytes(data, "selected_ids").Array() {
		sess.SelectedIDs = append(sess.SelectedIDs, id.String())
	}
	if saved := gjson.GetBytes(data, "saved_at").String(); saved != "" {
		if ts, err := time.Parse(time.RFC3339, saved); err == nil {
			sess.SavedAt = ts
		}
	}
	return sess, nil
}
