package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"condo-access-control/internal/domain/grants"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// El changefeed se apoya en el trigger de la migración: cada INSERT/UPDATE
// sobre access_grants hace pg_notify en este canal con {op, id}. Cada
// suscripción toma una conexión dedicada del pool, hace LISTEN, entrega el
// conjunto inicial como added y luego traduce notificaciones a diffs
// releyendo la fila (nunca confía en el payload más allá del id).
const feedChannel = "access_grants_feed"

type feedPayload struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

func subscribe(ctx context.Context, pool *pgxpool.Pool, repo *GrantsRepo, f grants.Filter, log *zap.Logger) (<-chan grants.Change, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(ctx, "LISTEN "+feedChannel); err != nil {
		conn.Release()
		return nil, err
	}

	out := make(chan grants.Change)

	go func() {
		defer close(out)
		defer conn.Release()

		// matched recuerda qué ids están dentro del predicado para poder
		// clasificar added/modified/removed en las notificaciones.
		matched := make(map[string]bool)

		initial, err := initialSet(ctx, repo, f)
		if err != nil {
			log.Warn("changefeed initial query failed", zap.Error(err))
			return
		}
		for _, g := range initial {
			matched[g.ID] = true
			select {
			case out <- grants.Change{Op: grants.OpAdded, Grant: g}:
			case <-ctx.Done():
				return
			}
		}

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("changefeed listener stopped", zap.Error(err))
				}
				return
			}

			var p feedPayload
			if err := json.Unmarshal([]byte(n.Payload), &p); err != nil || p.ID == "" {
				log.Warn("changefeed payload malformed", zap.String("payload", n.Payload))
				continue
			}

			g, err := repo.GetByID(ctx, p.ID)
			if err != nil {
				if errors.Is(err, grants.ErrNotFound) {
					continue // los pases nunca se borran; por las dudas
				}
				log.Warn("changefeed reread failed", zap.String("grant_id", p.ID), zap.Error(err))
				continue
			}

			was := matched[g.ID]
			is := f.Matches(g)

			var c grants.Change
			switch {
			case !was && is:
				matched[g.ID] = true
				c = grants.Change{Op: grants.OpAdded, Grant: g}
			case was && is:
				c = grants.Change{Op: grants.OpModified, Grant: g}
			case was && !is:
				delete(matched, g.ID)
				c = grants.Change{Op: grants.OpRemoved, Grant: g}
			default:
				continue
			}

			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// initialSet resuelve el conjunto inicial con la query más angosta que
// cubre el filtro.
func initialSet(ctx context.Context, repo *GrantsRepo, f grants.Filter) ([]grants.Grant, error) {
	var candidates []grants.Grant
	var err error

	switch {
	case len(f.Statuses) == 1 && f.Statuses[0] == grants.StatusEnSitio && f.AuthorID != "":
		candidates, err = repo.QueryRadar(ctx, f.AuthorID)
	case len(f.Statuses) == 1 && f.Statuses[0] == grants.StatusSalida && f.ExcludeArchived:
		candidates, err = repo.QueryHistory(ctx, 0)
	case f.AuthorID != "":
		candidates, err = repo.QueryByAuthor(ctx, f.AuthorID)
	default:
		candidates, err = repo.QueryActive(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]grants.Grant, 0, len(candidates))
	for _, g := range candidates {
		if f.Matches(g) {
			out = append(out, g)
		}
	}
	return out, nil
}
