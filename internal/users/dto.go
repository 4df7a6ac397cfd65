package users

// CreateUserRequest opens a new account.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"required,oneof=admin manager assistant accountant"`
}

// UpdateUserRequest patches an account. Nil fields are left untouched.
type UpdateUserRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin manager assistant accountant"`
	Password *string `json:"password" validate:"omitempty,min=8,max=128"`
	IsActive *bool   `json:"is_active"`
}

// ListUsersRequest filters the account listing.
type ListUsersRequest struct {
	IsActive *bool
	Role     *string
	Limit    int
	Offset   int
}
