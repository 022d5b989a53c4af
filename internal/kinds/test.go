// ABOUTME: The "test" face kind: a fixed side effect per interaction, always resolving "ok".
// ABOUTME: Used to exercise the interaction protocol end to end without external tools.

package kinds

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/2389/face-gateway/internal/face"
)

// TestLogName is the file in the face home that records each input.
const TestLogName = "interactions.log"

// TestKind returns the test kind. Config key "view_port" publishes an http
// view on that port.
func TestKind() face.Kind {
	return face.Kind{
		ID:          "test",
		Title:       "Test",
		Description: "Appends each input to a log in its home and answers ok.",
		Create:      newTestFace,
	}
}

func newTestFace(_ context.Context, opts face.Options) (face.Face, error) {
	logPath := filepath.Join(opts.Home, TestLogName)
	var mu sync.Mutex

	var views []face.View
	if port, ok := opts.Config["view_port"].(float64); ok && port > 0 {
		views = append(views, face.View{Name: "log", Protocol: "http", Port: int(port), Path: "/" + TestLogName})
	}

	b := face.NewBase(face.BaseConfig{
		Logger: opts.Logger,
		Views:  views,
		Run: func(ctx context.Context, input string) (string, error) {
			mu.Lock()
			defer mu.Unlock()

			f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
			if err != nil {
				return "", fmt.Errorf("opening interaction log: %w", err)
			}
			defer f.Close()
			if _, err := fmt.Fprintln(f, input); err != nil {
				return "", fmt.Errorf("writing interaction log: %w", err)
			}
			return "ok", nil
		},
	})
	b.SetDetail("log", logPath)
	return b, nil
}
