package ws

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Handler streams the events of the :event_id route parameter.
func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		eventID, ok := c.Locals(localEventID).(string)
		if !ok || eventID == "" {
			_ = c.Close()
			return
		}

		client := &Client{
			hub:     hub,
			conn:    c,
			eventID: eventID,
			send:    make(chan []byte, 256),
		}

		if !hub.join(client) {
			_ = c.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

const localEventID = "ws_event_id"

// UpgradeMiddleware rejects plain HTTP requests and records the event id
// for Handler.
func UpgradeMiddleware(validEventID func(string) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		eventID := c.Params("event_id")
		if validEventID != nil && !validEventID(eventID) {
			return fiber.ErrBadRequest
		}
		c.Locals(localEventID, eventID)
		return c.Next()
	}
}
