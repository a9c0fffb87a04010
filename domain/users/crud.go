package users

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/internal/crud"
	"github.com/codecampus/campus-core/pkg/cache"
	"github.com/codecampus/campus-core/pkg/password"
	"github.com/codecampus/campus-core/pkg/permissions"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// Controller is the CRUD surface for users. The path id is the username.
type Controller = crud.Controller[User, CreateUserRequest, UpdateUserRequest]

// NewCRUDController wires the users entity into the dispatcher.
func NewCRUDController(
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events crud.EventPublisher,
	log *slog.Logger,
	hasher *password.Hasher,
) *Controller {
	desc := crud.Descriptor[User, CreateUserRequest, UpdateUserRequest]{
		Resource: "users",
		IDColumn: "username",
		NewFromCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateUserRequest) (*User, error) {
			user := &User{
				Username:   req.Username,
				Email:      req.Email,
				GivenName:  req.GivenName,
				FamilyName: req.FamilyName,
			}
			if req.Password != nil {
				email := ""
				if req.Email != nil {
					email = *req.Email
				}
				if violations := password.Validate(*req.Password, req.Username, email, nil); len(violations) > 0 {
					return nil, policyError(violations)
				}
				hash, err := hasher.Hash(*req.Password)
				if err != nil {
					return nil, err
				}
				user.PasswordHash = &hash
			} else {
				user.PasswordResetRequired = true
			}
			return user, nil
		},
		ApplyUpdate: func(user *User, req *UpdateUserRequest) error {
			if req.Email != nil {
				user.Email = req.Email
			}
			if req.GivenName != nil {
				user.GivenName = req.GivenName
			}
			if req.FamilyName != nil {
				user.FamilyName = req.FamilyName
			}
			return nil
		},
		ToDTO: func(user *User) any { return user.ToDTO() },
		ID:    func(user *User) string { return user.ID },
		FilterColumns: map[string]string{
			"username":   "username",
			"email":      "email",
			"is_service": "is_service",
		},
		DefaultOrder: "username ASC",
		SoftDelete:   true,
	}
	return crud.NewController(db, engine, c, events, log, desc)
}
