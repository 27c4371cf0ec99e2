package domain

// RoomID names a chat room. Rooms exist while they have members; nothing
// else about a room is durable here.
type RoomID string
