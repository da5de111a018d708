package poller

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
	"ordertracker/apps/ordertracker/internal/orders"
	"ordertracker/apps/ordertracker/internal/relay"
)

type RelayClient interface {
	GetOrders(ctx context.Context, chainID model.ChainID, owner string) ([]relay.APIOrder, error)
}

type OrderStore interface {
	Chain(chainID model.ChainID) model.ChainState
	PendingOwners(chainID model.ChainID) []string
	Dispatch(event orders.Event)
}

// Poller asks the relay about every owner with pending orders and folds the
// answers back into the store. Pending orders more than expiryGrace past their
// validTo are expired, unless the relay could not be asked about their owner.
type Poller struct {
	chainID     model.ChainID
	relay       RelayClient
	store       OrderStore
	interval    time.Duration
	expiryGrace time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewPoller creates a poller. expiryGrace should cover the crawler's finality
// window so a fill settled just before validTo is not expired first.
func NewPoller(chainID model.ChainID, relay RelayClient, store OrderStore, interval, expiryGrace time.Duration, logger *zap.Logger) *Poller {
	if interval == 0 {
		interval = 10 * time.Second
	}
	return &Poller{
		chainID:     chainID,
		relay:       relay,
		store:       store,
		interval:    interval,
		expiryGrace: expiryGrace,
		logger:      logger,
		now:         time.Now,
	}
}

func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("Starting pending order poller", zap.Stringer("chain_id", p.chainID), zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.PollOnce(ctx); err != nil {
				p.logger.Error("Error polling pending orders", zap.Stringer("chain_id", p.chainID), zap.Error(err))
			}
		}
	}
}

// PollOnce runs one sync round. A failing owner does not stop the others.
func (p *Poller) PollOnce(ctx context.Context) error {
	owners := p.store.PendingOwners(p.chainID)
	pendingIDs := p.store.Chain(p.chainID).Pending

	failed := make(map[string]bool)
	for _, owner := range owners {
		apiOrders, err := p.relay.GetOrders(ctx, p.chainID, owner)
		if err != nil {
			p.logger.Warn("Failed to fetch orders from relay", zap.Stringer("chain_id", p.chainID), zap.String("owner", owner), zap.Error(err))
			failed[owner] = true
			continue
		}

		var updates []model.Order
		for _, apiOrder := range apiOrders {
			if _, tracked := pendingIDs[apiOrder.UID]; !tracked {
				continue
			}
			updates = append(updates, relay.ToOrder(apiOrder))
		}

		if len(updates) > 0 {
			p.store.Dispatch(orders.AddOrUpdateOrdersBatch{ChainID: p.chainID, Orders: updates})
		}
	}

	p.expireOrders(failed)

	if len(failed) > 0 {
		return fmt.Errorf("failed to sync %d of %d owners", len(failed), len(owners))
	}
	return nil
}

// expireOrders leaves the orders of unsynced owners pending for this round
func (p *Poller) expireOrders(unsynced map[string]bool) {
	cutoff := p.now().Add(-p.expiryGrace).Unix()

	var expired []model.OrderID
	for id, obj := range p.store.Chain(p.chainID).Pending {
		if unsynced[obj.Order.Owner] {
			continue
		}
		if int64(obj.Order.ValidTo) < cutoff {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return
	}
	sort.Strings(expired)

	p.logger.Info("Expiring pending orders", zap.Stringer("chain_id", p.chainID), zap.Strings("order_ids", expired))
	p.store.Dispatch(orders.ExpireOrdersBatch{ChainID: p.chainID, IDs: expired})
}
