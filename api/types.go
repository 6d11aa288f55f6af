package api

import (
	"github.com/TheBrightLayer/ChirpWhirpServer/models"
	"github.com/TheBrightLayer/ChirpWhirpServer/services"
)

// routeHandlers contains all the handlers for different route types
type routeHandlers struct {
	blogHandler       blogHandler
	proposalHandler   proposalHandler
	quoteReplyHandler proposalHandler
}

// ErrorResponse represents an error response from the API
// @Description Error response structure
type ErrorResponse struct {
	Error   string `json:"error" example:"Blog not found"`
	Msg     string `json:"msg" example:"Blog not found"`
	Status  string `json:"status" example:"error"`
	Field   string `json:"field,omitempty" example:"title"`
	Details string `json:"details,omitempty" example:"Additional error details"`
}

// BlogListResponse is one page of blogs.
type BlogListResponse struct {
	Blogs      []*models.Blog `json:"blogs"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ProposalResponse is returned once the user mail went out. Info is only set
// for quote replies.
type ProposalResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Info    *services.Ack `json:"info,omitempty"`
}
