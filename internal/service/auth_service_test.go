package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth(f *fixture) (*AuthService, *UserService) {
	cfg := &config.Config{JWTSecret: "secret", JWTExpiry: time.Hour, BcryptCost: 4}
	auth := NewAuthService(cfg, f.users)
	return auth, NewUserService(f.users, f.classes, auth, zerolog.Nop())
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth, users := newAuth(f)

	u, err := users.Create(ctx, f.admin, model.CreateUserRequest{
		Username: "budi", Name: "Budi", Password: "rahasia", Role: model.RoleStudent, ClassID: &f.class.ID,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "rahasia", u.PasswordHash)

	_, err = auth.Login(ctx, "budi", "salah")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Login(ctx, "nobody", "rahasia")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := auth.Login(ctx, "budi", "rahasia")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(res.Token)
	require.NoError(t, err)
	id := claims.Identity()
	assert.Equal(t, u.ID, id.ID)
	assert.True(t, id.IsStudent())
	require.NotNil(t, id.ClassID)
	assert.Equal(t, f.class.ID, *id.ClassID)

	_, err = auth.ValidateToken(res.Token + "x")
	assert.Error(t, err)
}

func TestRegister_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, users := newAuth(f)
	missing := 404

	tests := []struct {
		name    string
		caller  model.CallerIdentity
		req     model.CreateUserRequest
		wantErr error
	}{
		{name: "teacher cannot create", caller: f.teacher, req: model.CreateUserRequest{Username: "x1", Name: "X", Password: "rahasia", Role: model.RoleTeacher}, wantErr: ErrForbidden},
		{name: "student without class", caller: f.admin, req: model.CreateUserRequest{Username: "x2", Name: "X", Password: "rahasia", Role: model.RoleStudent}, wantErr: ErrValidation},
		{name: "student unknown class", caller: f.admin, req: model.CreateUserRequest{Username: "x3", Name: "X", Password: "rahasia", Role: model.RoleStudent, ClassID: &missing}, wantErr: ErrNotFound},
		{name: "duplicate username", caller: f.admin, req: model.CreateUserRequest{Username: "guru1", Name: "X", Password: "rahasia", Role: model.RoleTeacher}, wantErr: ErrDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Create(ctx, tt.caller, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	teacher, err := users.Register(ctx, model.CreateUserRequest{Username: "guru9", Name: "Guru", Password: "rahasia", Role: model.RoleTeacher, ClassID: &f.class.ID})
	require.NoError(t, err)
	assert.Nil(t, teacher.ClassID)
}

func TestClassService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewClassService(f.classes, f.users)

	_, err := svc.Create(ctx, f.teacher, model.CreateClassRequest{Name: "X IPA 1", GradeLevel: 10})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Create(ctx, f.admin, model.CreateClassRequest{Name: f.class.Name, GradeLevel: 11})
	assert.ErrorIs(t, err, ErrDuplicate)

	students, err := svc.ListStudents(ctx, f.class.ID, f.teacher)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "siswa1", students[0].Username)

	_, err = svc.ListStudents(ctx, f.class.ID, f.student)
	assert.ErrorIs(t, err, ErrForbidden)
}
