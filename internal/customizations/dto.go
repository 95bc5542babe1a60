package customizations

import "time"

type createRequest struct {
	DocumentID     string `json:"documentId"`
	JobDescription string `json:"jobDescription"`
	TargetTitle    string `json:"targetTitle"`
	TargetOrg      string `json:"targetOrg"`
}

type customizationResponse struct {
	CustomizationID string     `json:"customizationId"`
	DocumentID      string     `json:"documentId"`
	Status          string     `json:"status"`
	Progress        int        `json:"progress"`
	TargetTitle     string     `json:"targetTitle,omitempty"`
	TargetOrg       string     `json:"targetOrg,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	ErrorCode       string     `json:"errorCode,omitempty"`
	ResultURL       string     `json:"resultUrl,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

func toResponse(c Customization) customizationResponse {
	return customizationResponse{
		CustomizationID: c.ID,
		DocumentID:      c.DocumentID,
		Status:          c.Status,
		Progress:        Progress(c.Status),
		TargetTitle:     c.TargetTitle,
		TargetOrg:       c.TargetOrg,
		ErrorMessage:    c.ErrorMessage,
		ErrorCode:       c.ErrorCode,
		ResultURL:       c.ResultURL,
		CreatedAt:       c.CreatedAt,
		CompletedAt:     c.CompletedAt,
	}
}
