package workflow

import (
	"net/http"

	"agentforge/core/services/events"
)

// HandleStream upgrades the connection to a websocket and hands it to the
// event hub's transport; subscribe/unsubscribe is driven by client
// messages over the same connection.
func (s *Service) HandleStream(w http.ResponseWriter, r *http.Request) {
	events.ServeWS(s.hub, s.logger, w, r)
}
