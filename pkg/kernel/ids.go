package kernel

import "github.com/google/uuid"

// UserID identifies a user account.
type UserID string

// NewUserID generates a random UserID.
func NewUserID() UserID { return UserID(uuid.NewString()) }

func (id UserID) String() string { return string(id) }
func (id UserID) IsEmpty() bool  { return id == "" }

// ProjectID identifies a project.
type ProjectID string

// NewProjectID generates a random ProjectID.
func NewProjectID() ProjectID { return ProjectID(uuid.NewString()) }

func (id ProjectID) String() string { return string(id) }
func (id ProjectID) IsEmpty() bool  { return id == "" }
