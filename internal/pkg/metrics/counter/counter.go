package counter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agricapital/agricapital/internal/pkg/cache"
)

const paymentCountersKey = "payments:counters"

// incrTimeout keeps a slow Redis from delaying webhook answers.
const incrTimeout = 500 * time.Millisecond

// Reconciliation increments fields of the payments:counters Redis hash,
// e.g. webhook:fedapay:approved or settle:return:approved.
type Reconciliation struct {
	client *redis.Client
}

// NewReconciliation uses client, or the shared cache client when nil.
func NewReconciliation(client *redis.Client) *Reconciliation {
	return &Reconciliation{client: client}
}

func (r *Reconciliation) rdb() *redis.Client {
	if r.client != nil {
		return r.client
	}
	return cache.GetClient()
}

// Incr adds one to field.
func (r *Reconciliation) Incr(ctx context.Context, field string) error {
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), incrTimeout)
	defer cancel()
	return r.rdb().HIncrBy(ictx, paymentCountersKey, field, 1).Err()
}

// Stats returns every counter. Unparsable values are skipped.
func (r *Reconciliation) Stats(ctx context.Context) (map[string]int64, error) {
	data, err := r.rdb().HGetAll(ctx, paymentCountersKey).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}

// Reset drops all counters.
func (r *Reconciliation) Reset(ctx context.Context) error {
	return r.rdb().Del(ctx, paymentCountersKey).Err()
}
