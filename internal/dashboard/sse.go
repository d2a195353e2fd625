package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/avellora/caresync/internal/models"
)

// messageEvent holds data for a new-message SSE event.
type messageEvent struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Sender         string `json:"sender"`
	Preview        string `json:"preview"`
	SentAt         string `json:"sent_at"`
}

// handleSSE streams new-message events by polling the message cache.
func handleSSE(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		if db == nil {
			return
		}

		// Only alert on messages created after the stream opened.
		lastSeen := time.Now()
		var newest models.Message
		if err := db.Order("created_at DESC").Limit(1).First(&newest).Error; err == nil {
			lastSeen = newest.CreatedAt
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				var newMsgs []models.Message
				db.Where("created_at > ?", lastSeen).
					Order("created_at ASC").
					Find(&newMsgs)

				if len(newMsgs) == 0 {
					continue
				}
				lastSeen = newMsgs[len(newMsgs)-1].CreatedAt

				for _, m := range newMsgs {
					writeSSE(c.Writer, "message", messageEvent{
						ID:             m.SyncID(),
						ConversationID: m.ConversationID,
						Sender:         m.SenderName,
						Preview:        preview(m.Content, 120),
						SentAt:         m.CreatedAt.UTC().Format(time.RFC3339),
					})
				}
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
