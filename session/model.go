package session

import (
	"encoding/json"
	"time"
)

// State is the authentication state of the client.
type State uint8

const (
	// StateInitializing is held from construction until start-up completes.
	StateInitializing State = iota
	// StateAuthenticated means a user snapshot is present and trusted.
	StateAuthenticated
	// StateUnauthenticated means no user is signed in.
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Role is the portal role of a user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return true
	}
	return false
}

// Associations lists the academic entities a user belongs to.
type Associations struct {
	Courses   []string `json:"courses"`
	Sessions  []string `json:"sessions"`
	Semesters []string `json:"semesters"`
	Subjects  []string `json:"subjects"`
}

// TeachingAssignment binds a faculty member to one subject offering.
type TeachingAssignment struct {
	Course   string `json:"course"`
	Session  string `json:"session"`
	Semester string `json:"semester"`
	Subject  string `json:"subject"`
}

// LoginAttempts is the server-side lockout bookkeeping for the account.
type LoginAttempts struct {
	Count       int        `json:"count"`
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`
	LockUntil   *time.Time `json:"lockUntil,omitempty"`
}

// UserProfile is the server-owned user snapshot cached on the device.
//
// Fields the client does not model are kept in Extra and written back
// unchanged, so the cached copy never loses server data.
type UserProfile struct {
	ID          string `json:"_id"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Role        Role   `json:"role"`
	Department  string `json:"department,omitempty"`
	ProfilePic  string `json:"profilePic,omitempty"`

	FacultyID   string `json:"facultyId,omitempty"`
	Designation string `json:"designation,omitempty"`

	RollNumber string `json:"rollNumber,omitempty"`

	Associations        Associations         `json:"associations"`
	TeachingAssignments []TeachingAssignment `json:"teachingAssignments,omitempty"`

	IsVerified    bool          `json:"isVerified"`
	IsBlocked     bool          `json:"isBlocked"`
	TokenVersion  int           `json:"tokenVersion"`
	LastLogin     *time.Time    `json:"lastLogin,omitempty"`
	LoginAttempts LoginAttempts `json:"loginAttempts"`
	DeviceToken   string        `json:"deviceToken,omitempty"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// IsFaculty reports whether the user has the faculty role.
func (u *UserProfile) IsFaculty() bool { return u != nil && u.Role == RoleFaculty }

// IsStudent reports whether the user has the student role.
func (u *UserProfile) IsStudent() bool { return u != nil && u.Role == RoleStudent }

// IsAdmin reports whether the user has the admin role.
func (u *UserProfile) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// Clone returns a deep copy of u.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	out := *u
	out.Associations = Associations{
		Courses:   cloneStrings(u.Associations.Courses),
		Sessions:  cloneStrings(u.Associations.Sessions),
		Semesters: cloneStrings(u.Associations.Semesters),
		Subjects:  cloneStrings(u.Associations.Subjects),
	}
	if u.TeachingAssignments != nil {
		out.TeachingAssignments = append([]TeachingAssignment(nil), u.TeachingAssignments...)
	}
	out.LastLogin = cloneTime(u.LastLogin)
	out.CreatedAt = cloneTime(u.CreatedAt)
	out.UpdatedAt = cloneTime(u.UpdatedAt)
	out.LoginAttempts.LastAttempt = cloneTime(u.LoginAttempts.LastAttempt)
	out.LoginAttempts.LockUntil = cloneTime(u.LoginAttempts.LockUntil)
	if u.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(u.Extra))
		for k, v := range u.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &out
}

// Snapshot is the read-only view of the session handed to the UI layer.
type Snapshot struct {
	User            *UserProfile
	State           State
	IsAuthenticated bool
	IsLoading       bool
	DeviceID        string
}

// NewSnapshot builds a snapshot that satisfies User == nil => !IsAuthenticated.
// An authenticated state without a user collapses to unauthenticated, and
// an initializing session always reports loading.
func NewSnapshot(user *UserProfile, state State, loading bool, deviceID string) Snapshot {
	if user == nil && state == StateAuthenticated {
		state = StateUnauthenticated
	}
	return Snapshot{
		User:            user.Clone(),
		State:           state,
		IsAuthenticated: state == StateAuthenticated,
		IsLoading:       loading || state == StateInitializing,
		DeviceID:        deviceID,
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
