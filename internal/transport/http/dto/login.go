package dto

type LoginRequest struct {
	Code string `json:"code" validate:"required,max=256"`
}

func (r *LoginRequest) Validate() error {
	return validateStruct(r)
}

// LoginResponse is the whole success body of POST /login.
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}
