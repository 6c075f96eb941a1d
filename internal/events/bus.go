// Package events delivers state-change notifications to subscribed realtime
// sessions. The core publishes to topics, never to individual sessions;
// every member subscribed to a lobby's topic receives each update, including
// the actor's own session (clients treat their own echoes as idempotent).
package events

// OnlineTopic is the global topic carrying online-count updates.
const OnlineTopic = "online"

// LobbyTopic returns the per-lobby topic name.
func LobbyTopic(lobbyID string) string {
	return "lobby:" + lobbyID
}

// Bus is the publish side of the realtime transport.
type Bus interface {
	// Publish fans an event out to every session subscribed to topic.
	// Delivery is best-effort; slow consumers drop messages rather than
	// block the publisher.
	Publish(topic, event string, payload interface{})
}
