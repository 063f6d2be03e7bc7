package constants

// Session
const (
	SessionCookieName = "task_session"
)

// Context keys
const (
	ContextKeyTask      = "task"
	ContextKeyRequestID = "request_id"
)

// Headers
const (
	HeaderRequestID = "X-Request-ID"
)

// Task field limits
const (
	NameMaxLength = 100
	SlugMaxLength = 120
)

// Route table
const (
	RouteNamespace = "tasks"
)

// AI task generation
const (
	MaxAIGeneratedTasks = 20
)

// Cache
const (
	TaskListCacheKey = "tasks:all"
)
