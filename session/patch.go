package session

import "time"

// UserPatch is a partial update merged into the cached user by
// UpdateUser. Nil fields are left untouched.
type UserPatch struct {
	FullName            *string
	Email               *string
	PhoneNumber         *string
	Department          *string
	ProfilePic          *string
	Designation         *string
	RollNumber          *string
	DeviceToken         *string
	IsVerified          *bool
	Associations        *Associations
	TeachingAssignments []TeachingAssignment
	UpdatedAt           *time.Time
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.FullName == nil && p.Email == nil && p.PhoneNumber == nil &&
		p.Department == nil && p.ProfilePic == nil && p.Designation == nil &&
		p.RollNumber == nil && p.DeviceToken == nil && p.IsVerified == nil &&
		p.Associations == nil && p.TeachingAssignments == nil && p.UpdatedAt == nil
}

// Apply returns a copy of u with the patch merged in. u is not modified.
func (p UserPatch) Apply(u *UserProfile) *UserProfile {
	if u == nil {
		return nil
	}
	out := u.Clone()
	setString(&out.FullName, p.FullName)
	setString(&out.Email, p.Email)
	setString(&out.PhoneNumber, p.PhoneNumber)
	setString(&out.Department, p.Department)
	setString(&out.ProfilePic, p.ProfilePic)
	setString(&out.Designation, p.Designation)
	setString(&out.RollNumber, p.RollNumber)
	setString(&out.DeviceToken, p.DeviceToken)
	if p.IsVerified != nil {
		out.IsVerified = *p.IsVerified
	}
	if p.Associations != nil {
		out.Associations = Associations{
			Courses:   cloneStrings(p.Associations.Courses),
			Sessions:  cloneStrings(p.Associations.Sessions),
			Semesters: cloneStrings(p.Associations.Semesters),
			Subjects:  cloneStrings(p.Associations.Subjects),
		}
	}
	if p.TeachingAssignments != nil {
		out.TeachingAssignments = append([]TeachingAssignment(nil), p.TeachingAssignments...)
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = cloneTime(p.UpdatedAt)
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
