package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scolarix/scolarix/internal/database/testutil"
	"github.com/scolarix/scolarix/internal/models"
	"github.com/scolarix/scolarix/pkg/crypto"
)

func TestProvisionAccountCreatesVerifiedActiveAccount(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDirectoryService(db)
	require.NoError(t, err)

	created, err := svc.ProvisionAccount(context.Background(), "Prof.Math@ac-x.fr")
	require.NoError(t, err)
	require.True(t, created)

	var account models.UserAccount
	require.NoError(t, db.Where("email = ?", "prof.math@ac-x.fr").First(&account).Error)
	require.True(t, account.EmailVerified)
	require.True(t, account.IsActive)
	require.NotEmpty(t, account.Password)
	require.True(t, strings.HasPrefix(account.Password, "$2"), "temporary secret must be stored hashed")
}

func TestProvisionAccountDuplicateIsNonFatal(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDirectoryService(db)
	require.NoError(t, err)

	created, err := svc.ProvisionAccount(context.Background(), "dup@ac-x.fr")
	require.NoError(t, err)
	require.True(t, created)

	created, err = svc.ProvisionAccount(context.Background(), "dup@ac-x.fr")
	require.NoError(t, err)
	require.False(t, created)

	var count int64
	require.NoError(t, db.Model(&models.UserAccount{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestAuthenticate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDirectoryService(db)
	require.NoError(t, err)

	hashed, err := crypto.HashPassword("Motdepasse1!")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.UserAccount{
		Email:         "direction@ac-x.fr",
		Password:      hashed,
		EmailVerified: true,
		IsActive:      true,
	}).Error)

	account, err := svc.Authenticate(context.Background(), "Direction@ac-x.fr", "Motdepasse1!")
	require.NoError(t, err)
	require.Equal(t, "direction@ac-x.fr", account.Email)

	_, err = svc.Authenticate(context.Background(), "direction@ac-x.fr", "wrong")
	require.Equal(t, "INVALID_CREDENTIALS", appCode(t, err))

	_, err = svc.Authenticate(context.Background(), "inconnu@ac-x.fr", "Motdepasse1!")
	require.Equal(t, "INVALID_CREDENTIALS", appCode(t, err))
}

func TestAuthenticateRejectsDisabledAccount(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDirectoryService(db)
	require.NoError(t, err)

	hashed, err := crypto.HashPassword("Motdepasse1!")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.UserAccount{
		Email:    "parti@ac-x.fr",
		Password: hashed,
		IsActive: false,
	}).Error)

	_, err = svc.Authenticate(context.Background(), "parti@ac-x.fr", "Motdepasse1!")
	require.Equal(t, "INVALID_CREDENTIALS", appCode(t, err))
}

func TestListUsersOrderedByEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDirectoryService(db)
	require.NoError(t, err)

	for _, email := range []string{"b@ac-x.fr", "a@ac-x.fr"} {
		_, err := svc.ProvisionAccount(context.Background(), email)
		require.NoError(t, err)
	}

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "a@ac-x.fr", users[0].Email)
	require.Equal(t, "b@ac-x.fr", users[1].Email)
}

func TestSetSubject(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDirectoryService(db)
	require.NoError(t, err)

	_, err = svc.ProvisionAccount(context.Background(), "prof@ac-x.fr")
	require.NoError(t, err)

	var account models.UserAccount
	require.NoError(t, db.Where("email = ?", "prof@ac-x.fr").First(&account).Error)

	updated, err := svc.SetSubject(context.Background(), account.ID, "  Mathématiques  ")
	require.NoError(t, err)
	require.Equal(t, "Mathématiques", updated.Subject)

	// Clearing with empty input is allowed.
	updated, err = svc.SetSubject(context.Background(), account.ID, "")
	require.NoError(t, err)
	require.Empty(t, updated.Subject)
}

func TestSetSubjectValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDirectoryService(db)
	require.NoError(t, err)

	_, err = svc.SetSubject(context.Background(), "", "Histoire")
	require.Equal(t, "INVALID_ARGUMENT", appCode(t, err))

	_, err = svc.SetSubject(context.Background(), "missing-id", "Histoire")
	require.Equal(t, "NOT_FOUND", appCode(t, err))

	_, err = svc.SetSubject(context.Background(), "missing-id", strings.Repeat("h", 101))
	require.Equal(t, "INVALID_ARGUMENT", appCode(t, err))
}
