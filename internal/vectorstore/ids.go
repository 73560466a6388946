package vectorstore

import (
	"math/rand/v2"
	"sync"
	"time"
)

// idNodeBits low bits of every id carry a tag chosen once per process, so
// writers sharing a collection do not hand out the same id in the same
// microsecond unless their tags collide.
const idNodeBits = 10

var processNode = rand.Int64N(1 << idNodeBits)

// idGenerator hands out strictly increasing ids made of the wall clock in
// microseconds followed by the process tag.
type idGenerator struct {
	mu   sync.Mutex
	last int64
	node int64
	now  func() time.Time
}

func newIDGenerator() *idGenerator {
	return &idGenerator{node: processNode, now: time.Now}
}

func (g *idGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.now().UnixMicro()<<idNodeBits | g.node
	if id <= g.last {
		id = g.last + 1<<idNodeBits
	}
	g.last = id
	return id
}
