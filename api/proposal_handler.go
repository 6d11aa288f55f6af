package api

import (
	"net/http"

	"github.com/TheBrightLayer/ChirpWhirpServer/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	maxProposalBodyBytes = 1 << 20
	maxLoggedAttachments = 20
)

// proposalHandler serves one ProposalService variant.
type proposalHandler struct {
	responder Responder
	logger    zerolog.Logger
	service   *services.ProposalService
}

func newProposalHandler(service *services.ProposalService) proposalHandler {
	logger := log.With().
		Str("handlerName", "proposalHandler").
		Str("variant", string(service.Variant())).
		Logger()

	return proposalHandler{
		responder: NewResponder(logger),
		logger:    logger,
		service:   service,
	}
}

// sendProposal mails a proposal or quote reply and notifies the team
// @Summary Send proposal email
// @Description Sends the user mail, then an internal notification. Only the user mail can fail the request.
// @Tags Proposals
// @Accept json
// @Produce json
// @Param inquiry body services.Inquiry true "Inquiry"
// @Success 200 {object} ProposalResponse
// @Failure 400 {object} ErrorResponse "Invalid fromEmail or recipients"
// @Failure 429 {object} ErrorResponse "Too many requests"
// @Failure 500 {object} ErrorResponse "Failed to send email to user"
// @Router /proposal/send-proposal [post]
// @Router /sendMail/send-proposal [post]
func (h proposalHandler) sendProposal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxProposalBodyBytes)

		var inquiry services.Inquiry
		if err := decodeJSON(r.Body, &inquiry); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		attachments := inquiry.Attachments
		if len(attachments) > maxLoggedAttachments {
			attachments = attachments[:maxLoggedAttachments]
		}
		h.logger.Info().
			Str("fromName", inquiry.FromName).
			Str("fromEmail", inquiry.FromEmail).
			Strs("to", inquiry.To).
			Strs("cc", inquiry.Cc).
			Str("subject", inquiry.Subject).
			Str("company", inquiry.Company).
			Strs("attachments", attachments).
			Int("attachmentCount", len(inquiry.Attachments)).
			Msg("Incoming proposal request")

		result, err := h.service.Send(r.Context(), inquiry)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		response := ProposalResponse{
			Success: true,
			Message: h.service.Variant().SuccessMessage(),
		}
		if h.service.Variant() == services.VariantQuoteReply {
			response.Info = result.UserAck
		}
		h.responder.WriteJSON(w, response)
	}
}
