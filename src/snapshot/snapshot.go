// Package snapshot caches the server-authoritative balance per identity.
// Balances enter the cache only from a fetch or a confirmed mutation; the
// cache never derives one from a submitted amount.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/username/kncbank/web/src/bankapi"
	"github.com/username/kncbank/web/src/logger"
	"github.com/username/kncbank/web/src/models"
)

var (
	// ErrNetwork means the balance could not be fetched; callers offer a retry.
	ErrNetwork = errors.New("unable to reach the account service")
	// ErrNotFound means the service does not know the identity; callers
	// send the user back to login.
	ErrNotFound = errors.New("account not found")
)

// Source is the slice of the account service the cache reads from.
type Source interface {
	GetBalance(ctx context.Context, identity models.Identity) (decimal.Decimal, error)
	GetTransactions(ctx context.Context, identity models.Identity, limit int) ([]models.TransactionRecord, error)
}

type Cache struct {
	source Source
	store  *cache.Cache
	mu     sync.Mutex // serializes compare-and-store on a snapshot
	now    func() time.Time
}

func New(source Source, ttl time.Duration) *Cache {
	return &Cache{
		source: source,
		store:  cache.New(ttl, 2*ttl),
		now:    time.Now,
	}
}

func balanceKey(id models.Identity) string { return "balance:" + id.String() }
func historyKey(id models.Identity) string { return "history:" + id.String() }

func classify(err error) error {
	if errors.Is(err, bankapi.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// Load fetches the balance and stores it. A confirmation applied while the
// fetch was in flight is newer than the fetch and is kept.
func (c *Cache) Load(ctx context.Context, id models.Identity) (models.AccountSnapshot, error) {
	started := c.now()
	balance, err := c.source.GetBalance(ctx, id)
	if err != nil {
		return models.AccountSnapshot{}, classify(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.current(id); ok && cur.AsOf.After(started) {
		logger.FromContext(ctx).Debug("Discarding balance fetch older than cached confirmation", "identity", id.String())
		return cur, nil
	}
	snap := models.AccountSnapshot{Identity: id, Balance: balance, AsOf: c.now()}
	c.store.SetDefault(balanceKey(id), snap)
	return snap, nil
}

// Refresh re-reads the balance on page entry.
func (c *Cache) Refresh(ctx context.Context, id models.Identity) (models.AccountSnapshot, error) {
	return c.Load(ctx, id)
}

// Current returns the cached snapshot without touching the network.
func (c *Cache) Current(id models.Identity) (models.AccountSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current(id)
}

func (c *Cache) current(id models.Identity) (models.AccountSnapshot, bool) {
	v, ok := c.store.Get(balanceKey(id))
	if !ok {
		return models.AccountSnapshot{}, false
	}
	return v.(models.AccountSnapshot), true
}

// ApplyConfirmed overwrites the balance with the value the service echoed
// back after a mutation. Cached history is dropped since it no longer
// contains the new record.
func (c *Cache) ApplyConfirmed(id models.Identity, newBalance decimal.Decimal) models.AccountSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := models.AccountSnapshot{Identity: id, Balance: newBalance, AsOf: c.now()}
	c.store.SetDefault(balanceKey(id), snap)
	c.store.Delete(historyKey(id))
	return snap
}

// Invalidate forgets everything cached for id, forcing the next page to fetch.
func (c *Cache) Invalidate(id models.Identity) {
	c.store.Delete(balanceKey(id))
	c.store.Delete(historyKey(id))
}

type history struct {
	limit   int
	records []models.TransactionRecord
}

// Transactions fetches up to limit records, newest first. When the fetch
// fails but an equal or larger page is cached, the cached page is served.
func (c *Cache) Transactions(ctx context.Context, id models.Identity, limit int) ([]models.TransactionRecord, error) {
	records, err := c.source.GetTransactions(ctx, id, limit)
	if err == nil {
		c.store.SetDefault(historyKey(id), history{limit: limit, records: records})
		return records, nil
	}
	if v, ok := c.store.Get(historyKey(id)); ok && !errors.Is(err, bankapi.ErrNotFound) {
		h := v.(history)
		if (limit > 0 && h.limit >= limit) || (h.limit <= 0 && limit <= 0) {
			logger.FromContext(ctx).Warn("Serving cached history after fetch failure", "identity", id.String(), "error", err)
			return truncate(h.records, limit), nil
		}
	}
	return nil, classify(err)
}

func truncate(records []models.TransactionRecord, limit int) []models.TransactionRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
