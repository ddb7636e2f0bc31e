package vip

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/warp/vip-engine/generic"
)

// =============================================================================
// RANKING AGGREGATOR
// =============================================================================
//
// Every client is measured over the SAME period, chosen by the caller
// (normally ResolveStoreWeek / ResolveStoreMonth). Client window overrides
// do not apply here; they only affect a client's own status.
//
// Ordering: ValueSpent descending, then ClientID ascending, so equal spend
// always produces the same order.

// RankingResult holds the leaderboard and the clients that could not be
// ranked. A bad record never aborts the leaderboard.
type RankingResult struct {
	Period  generic.Period
	Entries []RankingEntry
	Skipped []*generic.ClientError
}

type rankedClient struct {
	entry RankingEntry
	err   error
}

// Rank computes the Top-N leaderboard for period. topN <= 0 returns every
// ranked client. Clients are evaluated concurrently; the result does not
// depend on scheduling.
func Rank(clients []Client, orders []Order, cfg *StoreVipConfig, period generic.Period, topN int) (RankingResult, error) {
	if cfg == nil {
		return RankingResult{}, generic.ErrMissingConfiguration
	}
	if err := period.Validate(); err != nil {
		return RankingResult{}, err
	}

	byClient := GroupByClient(orders)
	results := make([]rankedClient, len(clients))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range clients {
		g.Go(func() error {
			results[i] = rankOne(&clients[i], byClient[clients[i].ID], cfg, period)
			return nil
		})
	}
	_ = g.Wait()

	out := RankingResult{Period: period, Entries: make([]RankingEntry, 0, len(clients))}
	for i, r := range results {
		if r.err != nil {
			out.Skipped = append(out.Skipped, &generic.ClientError{ClientID: clients[i].ID, Err: r.err})
			continue
		}
		out.Entries = append(out.Entries, r.entry)
	}

	sort.SliceStable(out.Entries, func(i, j int) bool {
		a, b := out.Entries[i], out.Entries[j]
		if c := a.ValueSpent.Cmp(b.ValueSpent); c != 0 {
			return c > 0
		}
		return a.ClientID < b.ClientID
	})

	if topN > 0 && len(out.Entries) > topN {
		out.Entries = out.Entries[:topN]
	}
	for i := range out.Entries {
		out.Entries[i].Rank = i + 1
	}
	return out, nil
}

func rankOne(client *Client, orders []Order, cfg *StoreVipConfig, period generic.Period) rankedClient {
	if strings.TrimSpace(client.ID) == "" {
		return rankedClient{err: fmt.Errorf("%w: empty id", generic.ErrInvalidClient)}
	}
	window := Aggregate(client.ID, period, orders)
	status, err := Evaluate(client, cfg, window, Lifetime(client.ID, orders))
	if err != nil {
		return rankedClient{err: err}
	}
	return rankedClient{entry: RankingEntry{
		ClientID:   client.ID,
		ClientName: client.Name,
		ValueSpent: status.ValueSpent,
		OrderCount: status.OrderCount,
		Tier:       status.Tier,
		IsVip:      status.IsVip,
	}}
}
