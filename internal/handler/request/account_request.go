package request

type CreateAccountRequest struct {
	Username string `json:"username" binding:"required"`
}
