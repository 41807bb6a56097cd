// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package models

// Friend request states accepted by the Users service.
const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
	FriendRequestDeclined = "declined"
)

// FriendRequestCreate is sent to the Users service; SenderID is always the
// resolved caller, never taken from the client body.
type FriendRequestCreate struct {
	SenderID   int64 `json:"sender_id"`
	ReceiverID int64 `json:"receiver_id" validate:"min=1"`
}

// FriendRequestUpdate answers a pending request.
type FriendRequestUpdate struct {
	Status string `json:"status" validate:"oneof=accepted declined"`
	// ActorID is the resolved caller; the Users service checks it is the receiver.
	ActorID int64 `json:"actor_id"`
}
