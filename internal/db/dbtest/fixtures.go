package dbtest

import (
	"strings"
	"testing"

	"github.com/d9705996/huddle/internal/model"
	"gorm.io/gorm"
)

// Company inserts a company.
func Company(t testing.TB, gdb *gorm.DB, name string) *model.Company {
	t.Helper()
	c := &model.Company{Name: name}
	mustCreate(t, gdb, c)
	return c
}

// User inserts a confirmed user whose first name is the local part of
// email, capitalised.
func User(t testing.TB, gdb *gorm.DB, email string) *model.User {
	t.Helper()
	local, _, _ := strings.Cut(email, "@")
	u := &model.User{
		Email:          email,
		FirstName:      strings.ToUpper(local[:1]) + local[1:],
		LastName:       "Test",
		EmailConfirmed: true,
	}
	mustCreate(t, gdb, u)
	return u
}

// Member links u to c with role.
func Member(t testing.TB, gdb *gorm.DB, u *model.User, c *model.Company, role model.Role) *model.UserCompany {
	t.Helper()
	uc := &model.UserCompany{UserID: u.ID, CompanyID: c.ID, Role: role, Nickname: u.FullName()}
	mustCreate(t, gdb, uc)
	return uc
}

// Create inserts any model and fails the test on error.
func Create(t testing.TB, gdb *gorm.DB, v any) {
	t.Helper()
	mustCreate(t, gdb, v)
}

func mustCreate(t testing.TB, gdb *gorm.DB, v any) {
	t.Helper()
	if err := gdb.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}
