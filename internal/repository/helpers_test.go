package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/stretchr/testify/require"
)

// memGateway is an in-memory storage.Gateway that counts writes.
type memGateway struct {
	tasks     []model.Task
	users     []model.User
	taskSaves int
	userSaves int
	failSaves bool
}

func (g *memGateway) LoadTasks(context.Context) ([]model.Task, error) {
	out := make([]model.Task, 0, len(g.tasks))
	for _, t := range g.tasks {
		out = append(out, *t.Clone())
	}
	return out, nil
}

func (g *memGateway) SaveTasks(_ context.Context, tasks []model.Task) error {
	g.taskSaves++
	if g.failSaves {
		return errors.New("disk full")
	}
	g.tasks = tasks
	return nil
}

func (g *memGateway) LoadUsers(context.Context) ([]model.User, error) {
	return append([]model.User(nil), g.users...), nil
}

func (g *memGateway) SaveUsers(_ context.Context, users []model.User) error {
	g.userSaves++
	if g.failSaves {
		return errors.New("disk full")
	}
	g.users = users
	return nil
}

// fakeClock advances one second on every reading so events stay ordered.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	gateway *memGateway
	users   *UserRepository
	tasks   *TaskRepository
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := &memGateway{}
	clock := newFakeClock()
	users := NewUserRepository(gw, discardLogger(), WithClock(clock.Now))
	tasks := NewTaskRepository(gw, users, discardLogger(), WithClock(clock.Now))
	require.NoError(t, users.Load(context.Background()))
	require.NoError(t, tasks.Load(context.Background()))
	return &fixture{gateway: gw, users: users, tasks: tasks, clock: clock}
}

func (f *fixture) createTask(t *testing.T, title, description string) *model.Task {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), &model.CreateTaskRequest{Title: title, Description: description})
	require.NoError(t, err)
	return task
}

func (f *fixture) createUser(t *testing.T, name, email string) *model.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), &model.CreateUserRequest{Name: name, Email: email})
	require.NoError(t, err)
	return user
}

func ptr[T any](v T) *T {
	return &v
}
