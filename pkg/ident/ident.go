// Package ident generates client order identifiers that are unique across
// restarts and across hosts running the same profile. Venues echo the client
// id back, which is what lets a reissue chain be tied to its origin.
package ident

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

// Generator mints client order ids of the form <prefix>-<host>-<seq>-<rand>.
type Generator struct {
	prefix string
	host   string
	seq    atomic.Uint64
}

// New creates a generator. The host fragment comes from the protected
// machine id when available and falls back to a random one.
func New(prefix string) *Generator {
	host, err := machineid.ProtectedID(prefix)
	if err != nil || host == "" {
		host = uuid.NewString()
	}
	host = strings.ReplaceAll(host, "-", "")
	if len(host) > 8 {
		host = host[:8]
	}
	return &Generator{prefix: prefix, host: host}
}

// Next returns a fresh client order id.
func (g *Generator) Next() string {
	n := g.seq.Add(1)
	rnd := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s-%s-%d-%s", g.prefix, g.host, n, rnd)
}
