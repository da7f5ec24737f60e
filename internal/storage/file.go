package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hiroki-koketsu/taskboard/internal/model"
)

const (
	TasksFile = "tasks.json"
	UsersFile = "users.json"
)

// FileGateway keeps each collection in its own JSON document under a
// data directory.
type FileGateway struct {
	dir    string
	logger *slog.Logger
}

// NewFileGateway creates the data directory if needed.
func NewFileGateway(dir string, logger *slog.Logger) (*FileGateway, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &FileGateway{dir: dir, logger: logger}, nil
}

// LoadTasks reads tasks.json. A missing or malformed file is replaced by the
// default snapshot.
func (g *FileGateway) LoadTasks(ctx context.Context) ([]model.Task, error) {
	path := filepath.Join(g.dir, TasksFile)
	data, err := os.ReadFile(path)
	if err == nil {
		tasks, derr := DecodeTasks(data)
		if derr == nil {
			return tasks, nil
		}
		err = derr
	}
	if !errors.Is(err, fs.ErrNotExist) {
		g.logger.WarnContext(ctx, "unreadable task snapshot, using defaults",
			slog.String("path", path), slog.Any("error", err))
	}

	tasks := DefaultTasks()
	if err := g.SaveTasks(ctx, tasks); err != nil {
		g.logger.WarnContext(ctx, "failed to write default task snapshot", slog.Any("error", err))
	}
	return tasks, nil
}

// SaveTasks replaces tasks.json.
func (g *FileGateway) SaveTasks(_ context.Context, tasks []model.Task) error {
	data, err := EncodeTasks(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	return writeFile(filepath.Join(g.dir, TasksFile), data)
}

// LoadUsers reads users.json. A missing or malformed file yields no users.
func (g *FileGateway) LoadUsers(ctx context.Context) ([]model.User, error) {
	path := filepath.Join(g.dir, UsersFile)
	data, err := os.ReadFile(path)
	if err == nil {
		users, derr := DecodeUsers(data)
		if derr == nil {
			return users, nil
		}
		err = derr
	}
	if !errors.Is(err, fs.ErrNotExist) {
		g.logger.WarnContext(ctx, "unreadable user snapshot, starting empty",
			slog.String("path", path), slog.Any("error", err))
	}
	return []model.User{}, nil
}

// SaveUsers replaces users.json.
func (g *FileGateway) SaveUsers(_ context.Context, users []model.User) error {
	data, err := EncodeUsers(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	return writeFile(filepath.Join(g.dir, UsersFile), data)
}

// writeFile writes through a temp file so readers never see a partial
// document.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
