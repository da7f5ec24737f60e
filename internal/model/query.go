package model

// Search scopes for TaskQuery.SearchIn. Any other value requires the text to
// appear in both title and description.
const (
	SearchInTitle       = "title"
	SearchInDescription = "description"
	SearchInBoth        = "both"
)

// UnassignedFilter is the UserID sentinel selecting tasks with no assignee.
const UnassignedFilter = "unassigned"

// Sort fields accepted by TaskQuery.SortBy.
const (
	SortByID           = "id"
	SortByTitle        = "title"
	SortByStatus       = "status"
	SortByCreatedAt    = "created_at"
	SortByPriority     = "priority"
	SortByDescription  = "description"
	SortByAssignedUser = "assigned_user"
	SortByDueDate      = "due_date"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
)

// TaskQuery combines search, filters, sorting and pagination. Nil filters
// are not applied.
type TaskQuery struct {
	Query     string
	SearchIn  string
	Status    *string
	UserID    *string
	Priority  *string
	Tags      []string
	Overdue   *bool
	SortBy    string
	Ascending bool
	Page      int
	Size      int
}

// NewTaskQuery returns a query with the default search scope, sort order and
// page window.
func NewTaskQuery() TaskQuery {
	return TaskQuery{
		SearchIn:  SearchInBoth,
		SortBy:    SortByCreatedAt,
		Ascending: true,
		Page:      DefaultPage,
		Size:      DefaultPageSize,
	}
}
