package auth

import (
	"context"
	"errors"
	"net/http"

	"pawpay/internal/domain"
)

type ctxKey string

const actorKey ctxKey = "actor"

// ActorMiddleware resolves the caller identity forwarded by the API gateway.
// The gateway has already authenticated the request; this layer only needs
// the actor for audit attribution and role checks.
func ActorMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := r.Header.Get("X-Actor-Id")
			actorType := r.Header.Get("X-Actor-Type")
			if actorID == "" || actorType == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			switch domain.ActorType(actorType) {
			case domain.ActorAdmin, domain.ActorClinic, domain.ActorOwner, domain.ActorSystem:
			default:
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			actor := domain.Actor{
				ID:   actorID,
				Type: domain.ActorType(actorType),
				Role: r.Header.Get("X-Actor-Role"),
			}

			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	if !ok {
		return domain.Actor{}, errors.New("actor not found in context")
	}
	return actor, nil
}
