// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/confluence/internal/middleware"
)

// Router wires handlers, authentication and middleware into one chi tree.
type Router struct {
	handler       *Handler
	authenticate  func(http.Handler) http.Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. authenticate guards every /api route.
func NewRouter(handler *Handler, authenticate func(http.Handler) http.Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, authenticate: authenticate, chiMiddleware: mw}
}

// Setup builds the HTTP handler.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight never reaches auth

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondDetail(w, r, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondDetail(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	// ========================
	// Operational Endpoints
	// ========================
	r.Get("/", h.Root)
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	// ========================
	// API Endpoints
	// ========================
	r.Route("/api", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.Compression)
		r.Use(router.authenticate)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Get("/me", h.Me)
			r.Post("/sync", h.SyncUser)
			r.Get("/interests", h.Interests)

			r.Route("/{user_id}", func(r chi.Router) {
				r.Get("/", h.GetUser)
				r.Put("/", h.UpdateUser)

				// Composite
				r.Get("/feed", h.Feed)
				r.Get("/activity", h.Activity)

				r.Get("/schedules", h.UserSchedules)
				r.Post("/schedules", h.CreateSchedule)
				r.Delete("/schedules/{schedule_id}", h.DeleteSchedule)

				r.Get("/interests", h.UserInterests)
				r.Post("/interests", h.SetUserInterests)

				r.Get("/friends", h.Friends)
				r.Get("/friend-requests", h.FriendRequests)
				r.Post("/friend-requests", h.SendFriendRequest)
			})
		})

		r.Put("/friend-requests/{request_id}", h.AnswerFriendRequest)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.CreateEvent)
			r.Post("/async", h.CreateEventAsync)
			r.Get("/tasks/{task_id}", h.EventTask)
			r.Get("/{event_id}", h.GetEvent)
			r.Put("/{event_id}", h.UpdateEvent)
			r.Delete("/{event_id}", h.DeleteEvent)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.ListPosts)
			r.Post("/", h.CreatePost)
			r.Get("/interests", h.PostInterests)
			r.Get("/{post_id}", h.GetPost)
			r.Put("/{post_id}", h.UpdatePost)
			r.Delete("/{post_id}", h.DeletePost)
		})
	})

	return r
}
