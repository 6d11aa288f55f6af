package api

import (
	"github.com/TheBrightLayer/ChirpWhirpServer/database"
	"github.com/TheBrightLayer/ChirpWhirpServer/services"
)

// Dependencies are the collaborators built in main and shared by the
// handlers. Translator and Covers may be nil.
type Dependencies struct {
	Proposal   *services.ProposalService
	QuoteReply *services.ProposalService
	Translator *services.BlogTranslator
	Covers     services.CoverStore
}

// initializeHandlers creates and returns all handlers organized in a routeHandlers struct
func initializeHandlers(database database.Database, deps Dependencies) *routeHandlers {
	return &routeHandlers{
		blogHandler:       newBlogHandler(database.BlogRepo(), deps.Translator, deps.Covers),
		proposalHandler:   newProposalHandler(deps.Proposal),
		quoteReplyHandler: newProposalHandler(deps.QuoteReply),
	}
}
