package routes

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"github.com/go2school/go2school/pkg/tracker"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type snapshotResponse struct {
	Collection string         `json:"collection"`
	Version    uint64         `json:"version"`
	Items      []fleet.Entity `json:"items"`
}

func newSnapshotResponse(snapshot store.Snapshot) snapshotResponse {
	return snapshotResponse{
		Collection: snapshot.Collection,
		Version:    snapshot.Version,
		Items:      snapshot.Items,
	}
}

func CollectionsRouter(router fiber.Router, engine *tracker.Engine) {
	router.Get("/:name", getCollection(engine))
	router.Patch("/:name/:id", updateEntity(engine))
}

func getCollection(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snapshot, err := engine.LookupSnapshot(c.Params("name"))
		if err != nil {
			return sendError(c, err)
		}

		return c.JSON(newSnapshotResponse(snapshot))
	}
}

func updateEntity(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var fields map[string]interface{}
		if err := c.BodyParser(&fields); err != nil {
			return sendBadRequest(c, "Request body must be a JSON object of fields")
		}

		collection := c.Params("name")
		id := c.Params("id")

		if err := engine.ApplyUpdate(collection, id, fleet.Fields(fields)); err != nil {
			return sendError(c, err)
		}

		for _, item := range engine.GetSnapshot(collection).Items {
			if item.EntityID() == id {
				return c.JSON(item)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

const streamKeepAlive = 15 * time.Second

// StreamRouter serves collection snapshots as server-sent events, one event per
// delivered snapshot. The optional limit query ends the stream after that many events.
func StreamRouter(router fiber.Router, engine *tracker.Engine) {
	router.Get("/:name", streamCollection(engine))
}

func streamCollection(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		if _, err := engine.LookupSnapshot(name); err != nil {
			return sendError(c, err)
		}

		limit := 0
		if query := c.Query("limit"); query != "" {
			parsed, err := strconv.Atoi(query)
			if err != nil || parsed < 0 {
				return sendBadRequest(c, "limit must be a positive integer")
			}
			limit = parsed
		}

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")

		snapshots := make(chan store.Snapshot, 16)
		cancel := engine.Subscribe(name, func(snapshot store.Snapshot) {
			select {
			case snapshots <- snapshot:
			default:
				log.Warn().Str("collection", snapshot.Collection).Uint64("version", snapshot.Version).Msg("Stream consumer too slow, dropping snapshot")
			}
		})

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer cancel()

			keepAlive := time.NewTicker(streamKeepAlive)
			defer keepAlive.Stop()

			for sent := 0; limit == 0 || sent < limit; {
				select {
				case snapshot := <-snapshots:
					body, err := json.Marshal(newSnapshotResponse(snapshot))
					if err != nil {
						log.Error().Err(err).Msg("Failed to encode snapshot")
						return
					}

					fmt.Fprintf(w, "event: snapshot\nid: %d\ndata: %s\n\n", snapshot.Version, body)
					sent++
				case <-keepAlive.C:
					fmt.Fprint(w, ": keep-alive\n\n")
				}

				if err := w.Flush(); err != nil {
					return
				}
			}
		})

		return nil
	}
}
