package dto

type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required"`
}

type LoginGuestRequest struct {
	DisplayName string `json:"displayName" binding:"required,min=1,max=50"`
}

type AuthenticateRequest struct {
	Token string `json:"token" binding:"required"`
}

// LoginResultMsg — общий конверт ответов контрольной плоскости
type LoginResultMsg struct {
	Token         string `json:"token,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	Role          string `json:"role,omitempty"`
	Error         string `json:"error,omitempty"`
}
