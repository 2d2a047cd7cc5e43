// Package fair produces provably fair game outcomes. The server seed is
// committed as a SHA-256 hash before any bet is taken against it; rotating
// the seed reveals the old one so players can replay every outcome.
//
// Outcome derivation is fixed: block k of a draw is
//
//	HMAC-SHA256(serverSeed, "game:clientSeed:nonce")        for k = 0
//	HMAC-SHA256(serverSeed, "game:clientSeed:nonce:k")      for k >= 1
//
// and float i of a draw is the 52-bit big-endian integer at hex offset
// (i%4)*13 of block i/4, divided by 2^52. All game mappings build on that
// float stream and must never change once live.
package fair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"sync"
)

const (
	floatBits      = 52
	floatsPerBlock = 4

	// MaxMultiplierX100 caps limbo/crash style multipliers at 10000.00x.
	MaxMultiplierX100 = 1000000
)

// Provider owns the current server seed. Safe for concurrent use.
type Provider struct {
	mu         sync.Mutex
	serverSeed string
}

func NewProvider() *Provider {
	return &Provider{serverSeed: randomSeed()}
}

// NewProviderWithSeed pins the seed; used by tests and replay tooling.
func NewProviderWithSeed(seed string) *Provider {
	return &Provider{serverSeed: seed}
}

func randomSeed() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("fair: failed to read entropy: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// GenerateClientSeed returns 128 bits of entropy for a new user.
func GenerateClientSeed() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("fair: failed to read entropy: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// HashSeed is the commitment published before play.
func HashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// SeedHash returns the commitment for the current server seed.
func (p *Provider) SeedHash() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return HashSeed(p.serverSeed)
}

// Rotate reveals the current seed and commits a fresh one. The returned
// seed is what players verify past outcomes against.
func (p *Provider) Rotate() (revealed, newHash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	revealed = p.serverSeed
	p.serverSeed = randomSeed()
	return revealed, HashSeed(p.serverSeed)
}

// Draw derives the outcome stream for one bet or round.
func (p *Provider) Draw(game, clientSeed string, nonce int64) *Draw {
	p.mu.Lock()
	seed := p.serverSeed
	p.mu.Unlock()
	return NewDraw(seed, game, clientSeed, nonce)
}

// Commit pins the current server seed. Outcomes drawn from the returned
// Commitment always use the pinned seed, so a Rotate between publishing
// the hash and settling cannot change what the hash committed to.
func (p *Provider) Commit() *Commitment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &Commitment{seed: p.serverSeed, hash: HashSeed(p.serverSeed)}
}

// Commitment is a server seed captured at the moment a bet or round
// opened, together with its published hash.
type Commitment struct {
	seed string
	hash string
}

// Hash is the commitment published to the player.
func (c *Commitment) Hash() string {
	return c.hash
}

// Draw derives an outcome stream from the pinned seed.
func (c *Commitment) Draw(game, clientSeed string, nonce int64) *Draw {
	return NewDraw(c.seed, game, clientSeed, nonce)
}

// Draw is a deterministic stream of uniform floats derived from
// (serverSeed, game, clientSeed, nonce). Replaying the same inputs
// reproduces it bit for bit.
type Draw struct {
	serverSeed string
	message    string
	blocks     []string // hex-encoded HMAC blocks, grown on demand
}

// NewDraw replays a draw from an already revealed seed.
func NewDraw(serverSeed, game, clientSeed string, nonce int64) *Draw {
	return &Draw{
		serverSeed: serverSeed,
		message:    fmt.Sprintf("%s:%s:%d", game, clientSeed, nonce),
	}
}

func (d *Draw) block(k int) string {
	for len(d.blocks) <= k {
		msg := d.message
		if n := len(d.blocks); n > 0 {
			msg = d.message + ":" + strconv.Itoa(n)
		}
		mac := hmac.New(sha256.New, []byte(d.serverSeed))
		mac.Write([]byte(msg))
		d.blocks = append(d.blocks, hex.EncodeToString(mac.Sum(nil)))
	}
	return d.blocks[k]
}

// Hash returns the hex of block 0, stored on bet records.
func (d *Draw) Hash() string {
	return d.block(0)
}

// Float returns float i of the stream, uniform in [0,1).
func (d *Draw) Float(i int) float64 {
	blk := d.block(i / floatsPerBlock)
	off := (i % floatsPerBlock) * 13
	n, err := strconv.ParseUint(blk[off:off+13], 16, 64)
	if err != nil {
		// 13 hex chars always parse; unreachable.
		panic("fair: bad hash window: " + err.Error())
	}
	return float64(n) / math.Pow(2, floatBits)
}

// Roll maps float 0 to [0,10000), hundredths of a percent. A roll of
// 6100 reads as 61.00 on the dice scale.
func (d *Draw) Roll() int {
	return int(d.Float(0) * 10000)
}

// MultiplierX100 maps float 0 to a crash multiplier in hundredths using
// the 99/f curve, clamped to [1.00x, 10000.00x].
func (d *Draw) MultiplierX100() int64 {
	f := d.Float(0)
	if f == 0 {
		return MaxMultiplierX100
	}
	m := int64(math.Floor(99.0 / f))
	if m < 100 {
		m = 100
	}
	if m > MaxMultiplierX100 {
		m = MaxMultiplierX100
	}
	return m
}

// Intn maps float i uniformly to [0,n).
func (d *Draw) Intn(i, n int) int {
	v := int(d.Float(i) * float64(n))
	if v >= n { // guard the f==1.0 edge that floats cannot quite reach
		v = n - 1
	}
	return v
}

// Picks returns the first count elements of a Fisher-Yates permutation
// of [0,n), consuming floats from index 0. Used to place mines once at
// session start.
func (d *Draw) Picks(count, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < count; i++ {
		j := i + d.Intn(i, n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:count]
}

// Verify replays a revealed seed against the published inputs. The caller
// compares the replayed outcome with the recorded one.
func Verify(serverSeed, game, clientSeed string, nonce int64) *Draw {
	return NewDraw(serverSeed, game, clientSeed, nonce)
}
