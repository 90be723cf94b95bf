package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

const (
	actorHeader   = "X-Actor-Id"
	maxActorBytes = 128
)

// Actor records the caller identity supplied by the upstream gateway. The
// value is stored as created_by on documents and stamped on outbox events.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(actorHeader))
			if actor == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(actor) > maxActorBytes {
				actor = actor[:maxActorBytes]
			}

			ctx := WithActorID(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithActor(ctx, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
