// Package ratelimit aynı QR kodunu art arda tarayan istemcileri yavaşlatır.
package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"restoran-pos/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryStore anahtar başına token bucket tutar; ExpiresIn boyunca görülmeyen
// anahtarlar temizlenir.
type MemoryStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      rate.Limit
	burst     int
	expiresIn time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryStore(perSecond float64, burst int, expiresIn time.Duration) *MemoryStore {
	if burst < 1 {
		burst = 1
	}
	return &MemoryStore{
		visitors:  make(map[string]*visitor),
		rate:      rate.Limit(perSecond),
		burst:     burst,
		expiresIn: expiresIn,
		now:       time.Now,
	}
}

func (s *MemoryStore) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > s.expiresIn {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > s.expiresIn {
				delete(s.visitors, k)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.rate, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware işletme + IP anahtarıyla sınırlar; tenant middleware'inden sonra takılır
func Middleware(store *MemoryStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if client, err := tenant.FromCtx(c); err == nil {
			key = strconv.FormatUint(uint64(client.ID), 10) + ":" + key
		}
		if !store.Allow(key) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
