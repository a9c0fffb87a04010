package organizations

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/internal/crud"
	"github.com/codecampus/campus-core/pkg/cache"
	"github.com/codecampus/campus-core/pkg/permissions"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// OrgController is the CRUD surface for organizations.
type OrgController = crud.Controller[Organization, CreateOrganizationRequest, UpdateOrganizationRequest]

// FamilyController is the CRUD surface for course families.
type FamilyController = crud.Controller[CourseFamily, CreateCourseFamilyRequest, UpdateCourseFamilyRequest]

// NewOrgController wires organizations into the dispatcher. Creation is
// admin-only; reads reach through owned courses.
func NewOrgController(
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events crud.EventPublisher,
	log *slog.Logger,
) *OrgController {
	desc := crud.Descriptor[Organization, CreateOrganizationRequest, UpdateOrganizationRequest]{
		Resource: "organizations",
		NewFromCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateOrganizationRequest) (*Organization, error) {
			return &Organization{
				Name:       req.Name,
				Slug:       req.Slug,
				Properties: req.Properties,
			}, nil
		},
		ApplyUpdate: func(org *Organization, req *UpdateOrganizationRequest) error {
			if req.Name != nil {
				org.Name = *req.Name
			}
			if req.Properties != nil {
				org.Properties = req.Properties
			}
			return nil
		},
		ToDTO: func(org *Organization) any { return org },
		ID:    func(org *Organization) string { return org.ID },
		FilterColumns: map[string]string{
			"slug": "slug",
			"name": "name",
		},
		DefaultOrder: "name ASC",
		SoftDelete:   true,
	}
	return crud.NewController(db, engine, c, events, log, desc)
}

// NewFamilyController wires course families into the dispatcher.
func NewFamilyController(
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events crud.EventPublisher,
	log *slog.Logger,
) *FamilyController {
	desc := crud.Descriptor[CourseFamily, CreateCourseFamilyRequest, UpdateCourseFamilyRequest]{
		Resource: "course-families",
		NewFromCreate: func(ctx context.Context, p *rolemodel.Principal, req *CreateCourseFamilyRequest) (*CourseFamily, error) {
			return &CourseFamily{
				OrganizationID: req.OrganizationID,
				Name:           req.Name,
				Properties:     req.Properties,
			}, nil
		},
		ApplyUpdate: func(cf *CourseFamily, req *UpdateCourseFamilyRequest) error {
			if req.Name != nil {
				cf.Name = *req.Name
			}
			if req.Properties != nil {
				cf.Properties = req.Properties
			}
			return nil
		},
		ToDTO: func(cf *CourseFamily) any { return cf },
		ID:    func(cf *CourseFamily) string { return cf.ID },
		FilterColumns: map[string]string{
			"organization_id": "organization_id",
			"name":            "name",
		},
		DefaultOrder: "name ASC",
		SoftDelete:   true,
	}
	return crud.NewController(db, engine, c, events, log, desc)
}
