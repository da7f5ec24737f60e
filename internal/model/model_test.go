package model

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesByKind(t *testing.T) {
	err := NewError(KindInvalidStatus, "invalid status %q", "NOPE")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrTaskNotFound)

	wrapped := fmt.Errorf("update: %w", NewError(KindNotFound, "gone"))
	assert.ErrorIs(t, wrapped, ErrTaskNotFound)
	assert.NotErrorIs(t, wrapped, ErrValidation)

	var domainErr *Error
	require.True(t, errors.As(wrapped, &domainErr))
	assert.Equal(t, KindNotFound, domainErr.Kind)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, err := Paginate(items, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, page.Items)
	assert.Equal(t, 3, page.TotalPages)

	page, err = Paginate(items, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 5, page.TotalItems)

	page, err = Paginate([]int{}, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, page.TotalPages)

	page, err = Paginate(items, 1<<62, 4)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 2, page.TotalPages)

	page, err = Paginate(items, 2, math.MaxInt)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.TotalPages)

	page, err = Paginate(items, 1, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, items, page.Items)

	_, err = Paginate(items, 0, 2)
	assert.ErrorIs(t, err, ErrInvalidPagination)
}

func TestTaskIsOverdue(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	laterToday := now.Add(3 * time.Hour)

	cases := []struct {
		name   string
		status Status
		due    *time.Time
		want   bool
	}{
		{"no due date", StatusTodo, nil, false},
		{"past and todo", StatusTodo, &yesterday, true},
		{"past and ongoing", StatusOngoing, &yesterday, true},
		{"past and done", StatusDone, &yesterday, false},
		{"due today", StatusTodo, &laterToday, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := Task{Status: tc.status, DueDate: tc.due}
			assert.Equal(t, tc.want, task.IsOverdue(now))
		})
	}
}

func TestRanks(t *testing.T) {
	assert.Less(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityNormal.Rank())
	assert.Less(t, PriorityNormal.Rank(), PriorityLow.Rank())
	assert.Equal(t, PriorityNormal.Rank(), Priority("").Rank())

	assert.Less(t, StatusTodo.Rank(), StatusOngoing.Rank())
	assert.Less(t, StatusOngoing.Rank(), StatusDone.Rank())
}
