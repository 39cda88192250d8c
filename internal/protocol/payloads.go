package protocol

import (
	"encoding/json"
	"fmt"
)

// DrawStroke is one line segment on the canvas. Coordinates, color and
// width are opaque to the server and relayed as received.
type DrawStroke struct {
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

type Player struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// PlayerEntry encodes as a [sessionId, player] pair, the shape of a
// serialized Map entry that browser clients destructure.
type PlayerEntry struct {
	SessionID string
	Player    Player
}

func (p PlayerEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.SessionID, p.Player})
}

func (p *PlayerEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("player entry: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &p.SessionID); err != nil {
		return fmt.Errorf("player entry id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &p.Player); err != nil {
		return fmt.Errorf("player entry player: %w", err)
	}
	return nil
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type PlayerJoined struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type RoomState struct {
	Players        []PlayerEntry `json:"players"`
	DrawingHistory []DrawStroke  `json:"drawingHistory"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}
