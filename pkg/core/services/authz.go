package services

import "context"

type Action string

const (
	ActionManageEvent       Action = "event.manage"
	ActionViewEvent         Action = "event.view"
	ActionApply             Action = "assignment.apply"
	ActionManageAssignment  Action = "assignment.manage"
	ActionConfirm           Action = "attendance.confirm"
	ActionViewWorkers       Action = "event.view_workers"
	ActionReadNotifications Action = "notifications.read"
	ActionManageUsers       Action = "user.manage"
	ActionReviewWorker      Action = "review.write"
	ActionViewReviews       Action = "review.read"
)

// Authorizer is the capability check run before every operation. Policies
// live outside this package.
type Authorizer interface {
	Can(ctx context.Context, actorID string, action Action, resource string) bool
}

// AllowAll permits everything
type AllowAll struct{}

func (AllowAll) Can(context.Context, string, Action, string) bool { return true }

// AuthorizerFunc adapts a function to Authorizer
type AuthorizerFunc func(ctx context.Context, actorID string, action Action, resource string) bool

func (f AuthorizerFunc) Can(ctx context.Context, actorID string, action Action, resource string) bool {
	return f(ctx, actorID, action, resource)
}

type actorKey struct{}

// WithActor attaches the id of the caller to ctx
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFrom returns the caller attached by WithActor, or ""
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
