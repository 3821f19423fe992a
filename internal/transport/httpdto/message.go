package httpdto

type SendMessageRequest struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Message  string `json:"message" binding:"required"`
	FileName string `json:"file_name"`
}

type ToggleReactionRequest struct {
	Reaction string `json:"reaction" binding:"required"`
}

type EditMessageRequest struct {
	Message string `json:"message" binding:"required"`
}
