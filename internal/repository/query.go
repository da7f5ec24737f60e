package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type predicate func(*model.Task) bool

// Search narrows the collection with the query's filters and text search,
// sorts what is left and returns the requested page. Every stage validates
// its own input, in stage order, even when an earlier stage already left
// nothing to filter.
func (r *TaskRepository) Search(ctx context.Context, q model.TaskQuery) (*model.Page[model.Task], error) {
	_, span := tracer.Start(ctx, "TaskRepository.Search",
		trace.WithAttributes(
			attribute.String("query.sort_by", q.SortBy),
			attribute.Bool("query.ascending", q.Ascending),
			attribute.Int("query.page", q.Page),
			attribute.Int("query.size", q.Size),
		),
	)
	defer span.End()

	if err := model.ValidatePagination(q.Page, q.Size); err != nil {
		return nil, err
	}

	now := r.now()
	lower := cases.Lower(language.Und)

	stages := []func() (predicate, error){
		func() (predicate, error) { return statusStage(q.Status) },
		func() (predicate, error) { return r.userStage(q.UserID) },
		func() (predicate, error) { return priorityStage(q.Priority) },
		func() (predicate, error) { return tagsStage(q.Tags) },
		func() (predicate, error) { return overdueStage(q.Overdue, now), nil },
		func() (predicate, error) { return textStage(q.Query, q.SearchIn, lower), nil },
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	working := slices.Clone(r.tasks)
	for _, stage := range stages {
		keep, err := stage()
		if err != nil {
			return nil, err
		}
		if keep != nil && len(working) > 0 {
			working = slices.DeleteFunc(working, func(t *model.Task) bool { return !keep(t) })
		}
	}

	compare, err := sortKey(q.SortBy, lower)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(working, compare)
	if !q.Ascending {
		slices.Reverse(working)
	}

	window, err := model.Paginate(working, q.Page, q.Size)
	if err != nil {
		return nil, err
	}

	items := make([]model.Task, 0, len(window.Items))
	for _, t := range window.Items {
		v := t.Clone()
		v.Overdue = v.IsOverdue(now)
		items = append(items, *v)
	}

	span.SetAttributes(attribute.Int("query.total_items", window.TotalItems))
	return &model.Page[model.Task]{
		Items:      items,
		Page:       window.Page,
		PageSize:   window.PageSize,
		TotalItems: window.TotalItems,
		TotalPages: window.TotalPages,
	}, nil
}

func statusStage(status *string) (predicate, error) {
	if status == nil {
		return nil, nil
	}
	want, err := validation.Status(*status)
	if err != nil {
		return nil, err
	}
	return func(t *model.Task) bool { return t.Status == want }, nil
}

// userStage keeps tasks assigned to one existing user, or with the
// "unassigned" sentinel, tasks with no assignee.
func (r *TaskRepository) userStage(userID *string) (predicate, error) {
	if userID == nil {
		return nil, nil
	}
	id := strings.TrimSpace(*userID)
	if id == model.UnassignedFilter {
		return func(t *model.Task) bool { return t.AssignedUser == "" }, nil
	}
	if !r.users.Exists(id) {
		return nil, model.NewError(model.KindUserNotFound, "user %s not found", id)
	}
	return func(t *model.Task) bool { return t.AssignedUser == id }, nil
}

func priorityStage(priority *string) (predicate, error) {
	if priority == nil {
		return nil, nil
	}
	want, err := validation.Priority(*priority)
	if err != nil {
		return nil, err
	}
	return func(t *model.Task) bool { return t.Priority.OrDefault() == want }, nil
}

// tagsStage keeps tasks carrying at least one of the given tags.
func tagsStage(tags []string) (predicate, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	want := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		tag, err := validation.Tag(raw)
		if err != nil {
			return nil, err
		}
		want[tag] = struct{}{}
	}
	return func(t *model.Task) bool {
		return slices.ContainsFunc(t.Tags, func(tag string) bool {
			_, ok := want[tag]
			return ok
		})
	}, nil
}

func overdueStage(overdue *bool, now time.Time) predicate {
	if overdue == nil {
		return nil
	}
	want := *overdue
	return func(t *model.Task) bool { return t.IsOverdue(now) == want }
}

// textStage matches case-insensitively in the title, the description,
// either ("both") or, for any other scope, both at once.
func textStage(query, scope string, lower cases.Caser) predicate {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	needle := lower.String(query)
	seen := make(map[string]struct{})
	return func(t *model.Task) bool {
		if _, dup := seen[t.ID]; dup {
			return false
		}
		inTitle := strings.Contains(lower.String(t.Title), needle)
		inDescription := strings.Contains(lower.String(t.Description), needle)

		var match bool
		switch scope {
		case model.SearchInTitle:
			match = inTitle
		case model.SearchInDescription:
			match = inDescription
		case model.SearchInBoth:
			match = inTitle || inDescription
		default:
			match = inTitle && inDescription
		}
		if match {
			seen[t.ID] = struct{}{}
		}
		return match
	}
}

// sortKey returns the ascending comparison for a sort field. Missing values
// sort first.
func sortKey(field string, lower cases.Caser) (func(a, b *model.Task) int, error) {
	switch field {
	case model.SortByID:
		return func(a, b *model.Task) int { return strings.Compare(a.ID, b.ID) }, nil
	case model.SortByTitle:
		return func(a, b *model.Task) int {
			return strings.Compare(lower.String(a.Title), lower.String(b.Title))
		}, nil
	case model.SortByStatus:
		return func(a, b *model.Task) int { return cmp.Compare(a.Status.Rank(), b.Status.Rank()) }, nil
	case model.SortByCreatedAt:
		return func(a, b *model.Task) int { return a.CreatedAt.Compare(b.CreatedAt) }, nil
	case model.SortByPriority:
		return func(a, b *model.Task) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) }, nil
	case model.SortByDescription:
		return func(a, b *model.Task) int { return strings.Compare(a.Description, b.Description) }, nil
	case model.SortByAssignedUser:
		return func(a, b *model.Task) int { return strings.Compare(a.AssignedUser, b.AssignedUser) }, nil
	case model.SortByDueDate:
		return func(a, b *model.Task) int {
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return 0
			case a.DueDate == nil:
				return -1
			case b.DueDate == nil:
				return 1
			}
			return a.DueDate.Compare(*b.DueDate)
		}, nil
	}
	return nil, model.NewError(model.KindInvalidSortField,
		"invalid sort criteria %q, allowed values: id, title, status, created_at, priority, description, assigned_user, due_date", field)
}
