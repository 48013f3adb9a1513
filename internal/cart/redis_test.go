package cart

import (
	"context"
	"testing"
	"time"
)

// Startup probes an unreachable Redis and falls back to in-process carts; the
// abandoned persister must still close its pool cleanly.
func TestRedisPersisterCloseAfterFailedPing(t *testing.T) {
	p := NewRedisPersister("127.0.0.1:1", "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := p.Ping(ctx); err == nil {
		t.Skip("something is listening on 127.0.0.1:1")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close after failed ping: %v", err)
	}
}
