package repository

import (
	"context"
	"testing"

	"workday/internal/domain"
	"workday/internal/models"
	"workday/internal/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	repo := NewUserRepository(testdb.New(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{CompanyID: 1, Email: "a@acme.test", Role: domain.RoleEmployee}))
	err := repo.Create(ctx, &models.User{CompanyID: 1, Email: "a@acme.test", Role: domain.RoleEmployee})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = repo.GetByEmail(ctx, "missing@acme.test")
	assert.ErrorIs(t, err, ErrNotFound)
}
