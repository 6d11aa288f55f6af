package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const livenessText = "🚀 Blog API running..."

// setupRoutes mounts the blog and proposal routes. There is no auth layer.
func setupRoutes(r chi.Router, handlers *routeHandlers, proposalLimiter *ipRateLimiter) {
	r.Group(func(r chi.Router) {
		r.Use(ColoredHTTPLoggingMiddleware)

		r.Route("/blogs", func(r chi.Router) {
			r.Get("/", handlers.blogHandler.getBlogs())
			r.Post("/", handlers.blogHandler.createBlog())
			r.Get("/{slug}", handlers.blogHandler.getBlog())
			r.Put("/{id}", handlers.blogHandler.updateBlog())
			r.Delete("/{slug}", handlers.blogHandler.deleteBlog())
		})

		r.Group(func(r chi.Router) {
			r.Use(proposalLimiter.middleware)
			r.Post("/proposal/send-proposal", handlers.proposalHandler.sendProposal())
			r.Post("/sendMail/send-proposal", handlers.quoteReplyHandler.sendProposal())
		})
	})
}

func liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(livenessText))
	}
}
