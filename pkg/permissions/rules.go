package permissions

import (
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// DefaultRules is the resource policy of the platform. A resource without a
// rule (users, roles) is admin/claim-only; an action absent from MinRole is
// admin/claim-only for that resource.
func DefaultRules() []Rule {
	return []Rule{
		{
			Resource: "courses",
			Table:    "courses",
			Reach:    ReachSelfCourse,
			MinRole: map[string]rolemodel.CourseRole{
				ActionList:   rolemodel.RoleStudent,
				ActionGet:    rolemodel.RoleStudent,
				ActionUpdate: rolemodel.RoleMaintainer,
				ActionDelete: rolemodel.RoleOwner,
			},
		},
		{
			Resource: "course-families",
			Table:    "course_families",
			Reach:    ReachCourseFamily,
			MinRole: map[string]rolemodel.CourseRole{
				ActionList:   rolemodel.RoleStudent,
				ActionGet:    rolemodel.RoleStudent,
				ActionUpdate: rolemodel.RoleMaintainer,
			},
		},
		{
			Resource: "organizations",
			Table:    "organizations",
			Reach:    ReachOrganization,
			MinRole: map[string]rolemodel.CourseRole{
				ActionList: rolemodel.RoleStudent,
				ActionGet:  rolemodel.RoleStudent,
			},
		},
		{
			Resource: "course-contents",
			Table:    "course_contents",
			Reach:    ReachDirect,
			MinRole: map[string]rolemodel.CourseRole{
				ActionList:   rolemodel.RoleStudent,
				ActionGet:    rolemodel.RoleStudent,
				ActionCreate: rolemodel.RoleLecturer,
				ActionUpdate: rolemodel.RoleLecturer,
				ActionDelete: rolemodel.RoleMaintainer,
			},
		},
		{
			Resource: "course-members",
			Table:    "course_members",
			Reach:    ReachDirect,
			MinRole: map[string]rolemodel.CourseRole{
				ActionList:   rolemodel.RoleStudent,
				ActionGet:    rolemodel.RoleStudent,
				ActionCreate: rolemodel.RoleLecturer,
				ActionUpdate: rolemodel.RoleLecturer,
				ActionDelete: rolemodel.RoleLecturer,
			},
		},
		{
			Resource: "submission-groups",
			Table:    "submission_groups",
			Reach:    ReachViaContent,
			MinRole: map[string]rolemodel.CourseRole{
				ActionList:   rolemodel.RoleTutor,
				ActionGet:    rolemodel.RoleTutor,
				ActionCreate: rolemodel.RoleTutor,
				ActionUpdate: rolemodel.RoleTutor,
				ActionDelete: rolemodel.RoleLecturer,
			},
		},
		{
			Resource: "artifacts",
			Table:    "submission_artifacts",
			Reach:    ReachDirect,
			MinRole: map[string]rolemodel.CourseRole{
				ActionList: rolemodel.RoleTutor,
				ActionGet:  rolemodel.RoleTutor,
			},
		},
		{
			Resource: "results",
			Table:    "results",
			Reach:    ReachDirect,
			MinRole: map[string]rolemodel.CourseRole{
				ActionList:   rolemodel.RoleTutor,
				ActionGet:    rolemodel.RoleTutor,
				ActionCreate: rolemodel.RoleTutor,
				ActionUpdate: rolemodel.RoleTutor,
			},
		},
		{
			Resource: "grades",
			Table:    "submission_grades",
			Reach:    ReachDirect,
			MinRole: map[string]rolemodel.CourseRole{
				ActionList:   rolemodel.RoleTutor,
				ActionGet:    rolemodel.RoleTutor,
				ActionCreate: rolemodel.RoleTutor,
				ActionUpdate: rolemodel.RoleTutor,
				ActionDelete: rolemodel.RoleLecturer,
			},
		},
		{
			Resource: "reviews",
			Table:    "submission_reviews",
			Reach:    ReachDirect,
			MinRole: map[string]rolemodel.CourseRole{
				ActionList:   rolemodel.RoleTutor,
				ActionGet:    rolemodel.RoleTutor,
				ActionCreate: rolemodel.RoleTutor,
				ActionUpdate: rolemodel.RoleTutor,
				ActionDelete: rolemodel.RoleLecturer,
			},
		},
	}
}
