package channel

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// pgOrderTopic is the NOTIFY channel raised by the current_orders trigger.
const pgOrderTopic = "current_orders"

// PostgresChannel keeps the order in the current_orders table. A trigger publishes every
// row change with pg_notify; subscribers LISTEN through a pq.Listener, which reconnects on
// its own and is followed by a re-fetch so no change is missed.
type PostgresChannel struct {
	db           *sql.DB
	dsn          string
	minReconnect time.Duration
	maxReconnect time.Duration
	pingInterval time.Duration
	log          *logrus.Entry
}

func NewPostgresChannel(db *sql.DB, dsn string, log *logrus.Entry) *PostgresChannel {
	return &PostgresChannel{
		db:           db,
		dsn:          dsn,
		minReconnect: 500 * time.Millisecond,
		maxReconnect: 30 * time.Second,
		pingInterval: 90 * time.Second,
		log:          log,
	}
}

type pgNotice struct {
	Op        string            `json:"op"`
	Cart      []domain.CartLine `json:"cart"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (p *PostgresChannel) Upsert(ctx context.Context, state *domain.SharedOrderState) error {
	cart, err := json.Marshal(domain.CloneLines(state.Lines))
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	query := `INSERT INTO current_orders (id, cart, updated_at) VALUES ($1, $2, $3)
	          ON CONFLICT (id) DO UPDATE SET cart = EXCLUDED.cart, updated_at = EXCLUDED.updated_at`
	if _, err := p.db.ExecContext(ctx, query, domain.SharedOrderID, cart, state.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}
	return nil
}

func (p *PostgresChannel) Fetch(ctx context.Context) (*domain.SharedOrderState, error) {
	var cart []byte
	var updatedAt time.Time
	err := p.db.QueryRowContext(ctx,
		`SELECT cart, updated_at FROM current_orders WHERE id = $1`, domain.SharedOrderID).
		Scan(&cart, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(cart, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	state := domain.NewSharedOrder(lines, updatedAt.UTC())
	return domain.NormalizeOrder(&state)
}

func (p *PostgresChannel) Delete(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM current_orders WHERE id = $1`, domain.SharedOrderID); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

func (p *PostgresChannel) Subscribe(ctx context.Context, onChange func(Change)) (*Subscription, error) {
	listener := pq.NewListener(p.dsn, p.minReconnect, p.maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			p.log.WithError(err).WithField("event", ev).Warn("postgres listener problem")
		}
	})
	if err := listener.Listen(pgOrderTopic); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", pgOrderTopic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)

	go func() {
		defer listener.Close()
		ticker := time.NewTicker(p.pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-subCtx.Done():
				sub.finish(nil)
				return
			case n, ok := <-listener.Notify:
				if !ok {
					sub.finish(fmt.Errorf("%w: postgres listener closed", domain.ErrSubscriptionDropped))
					return
				}
				if n == nil {
					// the listener reconnected; notifications sent meanwhile are lost
					p.catchUp(subCtx, onChange)
					continue
				}
				p.deliver(n.Extra, onChange)
			case <-ticker.C:
				go func() {
					if err := listener.Ping(); err != nil {
						p.log.WithError(err).Debug("postgres listener ping failed")
					}
				}()
			}
		}
	}()

	return sub, nil
}

func (p *PostgresChannel) deliver(payload string, onChange func(Change)) {
	var notice pgNotice
	if err := json.Unmarshal([]byte(payload), &notice); err != nil {
		p.log.WithError(err).Warn("failed to decode order notification")
		return
	}

	if notice.Op == "DELETE" {
		onChange(Change{Deleted: true})
		return
	}

	state := domain.NewSharedOrder(notice.Cart, notice.UpdatedAt.UTC())
	normalized, err := domain.NormalizeOrder(&state)
	if err != nil {
		p.log.WithError(err).Warn("discarding order notification")
		return
	}
	onChange(Change{State: normalized})
}

func (p *PostgresChannel) catchUp(ctx context.Context, onChange func(Change)) {
	state, err := p.Fetch(ctx)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		onChange(Change{Deleted: true})
	case err != nil:
		p.log.WithError(err).Warn("failed to re-fetch order after reconnect")
	default:
		onChange(Change{State: state})
	}
}
