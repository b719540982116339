package centralsync

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"bitbucket.org/mmdatafocus/changes_backend/config"
	"github.com/gin-gonic/gin"
)

func PublishSyncRun(ctx context.Context, runId uint, trigger string) error {
	topicName := config.SyncRunsTopic()

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("CENTRAL_SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := SyncPubSubPayload{
		RunId:   runId,
		Trigger: trigger,
	}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler accepts the Pub/Sub push delivery for queued sync runs.
// Always answers 204 so a bad message is dropped instead of redelivered
// forever.
func (c *Coordinator) PubSubPushHandler() gin.HandlerFunc {
	return func(g *gin.Context) {
		if !envBoolDefault("ENABLE_CENTRAL_SYNC_PUSH_ENDPOINT", true) {
			g.Status(204)
			return
		}

		body, err := io.ReadAll(g.Request.Body)
		if err != nil {
			g.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			g.Status(204)
			return
		}

		var payload SyncPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			g.Status(204)
			return
		}
		if payload.RunId == 0 {
			g.Status(204)
			return
		}

		_ = c.ProcessSyncRun(g.Request.Context(), payload)
		g.Status(204)
	}
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
