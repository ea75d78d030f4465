package client

import (
	"context"
	"fmt"
	"time"

	"github.com/ankushKun/subspace-prod-sub001/internal/models"
)

// startLoader begins a background walk over a snapshot of the
// joined-server list, fetching full detail for each entry one at a time
// with a fixed pacing delay so the rate-sensitive remote service is not
// burst. Each profile refresh starts a fresh walk; overlapping walks are
// tolerated because the per-server fetches themselves are guarded.
func (c *Coordinator) startLoader(refs []models.ServerRef) {
	g := c.generation()
	snapshot := append([]models.ServerRef(nil), refs...)
	go c.runLoader(g, snapshot)
}

func (c *Coordinator) runLoader(g uint64, refs []models.ServerRef) {
	for i, ref := range refs {
		if !c.alive(g) {
			return
		}
		if ref.ServerID == "" {
			c.log.Warn(fmt.Sprintf("joined-server entry %d carries no id, skipping", i))
			continue
		}
		// Forced: the walk exists to refresh detail, so a cache hit
		// must not short-circuit it. A single failure is logged inside
		// FetchServer and must not halt the walk.
		c.FetchServer(context.Background(), ref.ServerID, true)
		if i < len(refs)-1 {
			time.Sleep(c.cfg.LoaderDelay)
		}
	}
}
