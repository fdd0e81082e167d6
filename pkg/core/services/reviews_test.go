package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Majulish/cookie/pkg/core/model"
)

func TestReviews(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, err := env.staffing.RegisterUser(ctx, model.User{ID: "w-1", Name: "Sam", OrganizationID: "org-1", Role: model.RoleWorker})
	require.NoError(t, err)

	recruiter := WithActor(ctx, "recruiter-1")
	first, err := env.staffing.AddReview(recruiter, "w-1", "  Always on time ")
	require.NoError(t, err)
	assert.Equal(t, "Always on time", first.Text)
	assert.Equal(t, "recruiter-1", first.CommenterID)

	_, err = env.staffing.AddReview(WithActor(ctx, "mgr-1"), "w-1", "Great with guests")
	require.NoError(t, err)

	_, err = env.staffing.AddReview(recruiter, "w-1", "")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = env.staffing.AddReview(recruiter, "ghost", "Who?")
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	reviews, err := env.staffing.ListReviews(ctx, "w-1")
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, first.ID, reviews[0].ID)
	assert.Equal(t, "mgr-1", reviews[1].CommenterID)

	none, err := env.staffing.ListReviews(ctx, "w-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReviews_Authorization(t *testing.T) {
	authz := AuthorizerFunc(func(_ context.Context, actor string, action Action, resource string) bool {
		if action == ActionReviewWorker {
			return actor == "recruiter-1"
		}
		return true
	})
	env := newTestEnv(t, authz)
	ctx := context.Background()

	_, err := env.staffing.AddReview(WithActor(ctx, "w-2"), "w-1", "Meh")
	assert.ErrorIs(t, err, model.ErrForbidden)
}
