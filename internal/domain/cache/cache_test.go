package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/cache"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCacheRoundTrip(t *testing.T) {
	Convey("Given a cache with a one minute TTL", t, func() {
		clock := &fakeClock{now: time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)}
		c := cache.New[string](cache.WithTTL(time.Minute), cache.WithClock(clock.Now))

		Convey("When a value is set", func() {
			c.Set("k", "v")

			Convey("Then it is returned before the TTL", func() {
				clock.Advance(59 * time.Second)
				v, ok := c.Get("k")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "v")
			})

			Convey("Then it is absent once the TTL has elapsed", func() {
				clock.Advance(time.Minute)
				_, ok := c.Get("k")
				So(ok, ShouldBeFalse)
				So(c.Len(), ShouldEqual, 0)
			})

			Convey("Then re-setting refreshes the creation time", func() {
				clock.Advance(50 * time.Second)
				c.Set("k", "v2")
				clock.Advance(50 * time.Second)
				v, ok := c.Get("k")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "v2")
			})
		})

		Convey("When a key was never set", func() {
			_, ok := c.Get("missing")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a cache without TTL", t, func() {
		clock := &fakeClock{now: time.Unix(0, 0)}
		c := cache.New[int](cache.WithClock(clock.Now))
		c.Set("k", 1)
		clock.Advance(24 * 365 * time.Hour)
		v, ok := c.Get("k")
		So(ok, ShouldBeTrue)
		So(v, ShouldEqual, 1)
	})
}

func TestCacheEviction(t *testing.T) {
	Convey("Given a full cache of capacity 8", t, func() {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		m := metrics.NewManager()
		c := cache.New[int](cache.WithCapacity(8), cache.WithClock(clock.Now), cache.WithName("payload"), cache.WithMetrics(m))
		for i := 0; i < 8; i++ {
			c.Set(fmt.Sprintf("k%d", i), i)
			clock.Advance(time.Second)
		}

		Convey("When a new key is inserted", func() {
			c.Set("new", 99)

			Convey("Then exactly the oldest quarter is evicted", func() {
				So(c.Len(), ShouldEqual, 7)
				for _, k := range []string{"k0", "k1"} {
					_, ok := c.Get(k)
					So(ok, ShouldBeFalse)
				}
				for _, k := range []string{"k2", "k7", "new"} {
					_, ok := c.Get(k)
					So(ok, ShouldBeTrue)
				}
				n, err := testutil.GatherAndCount(m.Registry(), "grid_query_cache_evictions_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When an existing key is overwritten", func() {
			c.Set("k0", 100)

			Convey("Then nothing is evicted", func() {
				So(c.Len(), ShouldEqual, 8)
			})
		})
	})

	Convey("Given a full cache of capacity 2", t, func() {
		clock := &fakeClock{now: time.Unix(0, 0)}
		c := cache.New[int](cache.WithCapacity(2), cache.WithClock(clock.Now))
		c.Set("a", 1)
		clock.Advance(time.Second)
		c.Set("b", 2)
		clock.Advance(time.Second)

		Convey("When inserting, at least one entry is evicted", func() {
			c.Set("c", 3)
			So(c.Len(), ShouldEqual, 2)
			_, ok := c.Get("a")
			So(ok, ShouldBeFalse)
			_, ok = c.Get("c")
			So(ok, ShouldBeTrue)
		})
	})

	Convey("Given entries created at the same instant", t, func() {
		clock := &fakeClock{now: time.Unix(0, 0)}
		c := cache.New[int](cache.WithCapacity(4), cache.WithClock(clock.Now))
		for _, k := range []string{"a", "b", "c", "d"} {
			c.Set(k, 0)
		}

		Convey("Then insertion order breaks the tie", func() {
			c.Set("e", 0)
			_, ok := c.Get("a")
			So(ok, ShouldBeFalse)
			_, ok = c.Get("b")
			So(ok, ShouldBeTrue)
		})
	})
}

func TestCacheConcurrency(t *testing.T) {
	Convey("Given concurrent writers", t, func() {
		c := cache.New[int](cache.WithCapacity(64))
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					c.Set(fmt.Sprintf("%d-%d", g, i), i)
					c.Get(fmt.Sprintf("%d-%d", g, i-1))
				}
			}(g)
		}
		wg.Wait()

		Convey("Then capacity is never exceeded", func() {
			So(c.Len(), ShouldBeLessThanOrEqualTo, 64)
		})
	})
}

func TestKey(t *testing.T) {
	Convey("Given endpoint parameters", t, func() {
		a := cache.Key("/api/f1/drivers", map[string]string{"season": "2023", "driver": "hamilton"})
		b := cache.Key("/api/f1/drivers", map[string]string{"driver": "hamilton", "season": "2023"})
		c := cache.Key("/api/f1/drivers", map[string]string{"driver": "hamilton", "season": "2022"})
		d := cache.Key("/api/f1/results", map[string]string{"driver": "hamilton", "season": "2023"})

		Convey("Then the key ignores map order and separates inputs", func() {
			So(a, ShouldEqual, b)
			So(a, ShouldNotEqual, c)
			So(a, ShouldNotEqual, d)
			So(len(a), ShouldEqual, 16)
		})
	})
}
