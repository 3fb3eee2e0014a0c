package modelcache_test

import (
	"testing"
	"time"

	"github.com/valpere/peretran-nmt/internal/modelcache"
)

type fakeTranslator struct {
	id        string
	onCPU     bool
	released  bool
}

func (f *fakeTranslator) MoveToCPU() { f.onCPU = true }
func (f *fakeTranslator) Release()   { f.released = true }

func TestPutGet_RoundTrip(t *testing.T) {
	c := modelcache.New(modelcache.Options{Capacity: 2})
	tr := &fakeTranslator{id: "a"}
	c.Put("en->de:opus-mt", tr)

	got, ok := c.Get("en->de:opus-mt")
	if !ok || got != Translator(tr) {
		t.Fatalf("expected cache hit with original translator")
	}
}

// Translator is a tiny alias to avoid repeating the interface type in tests.
type Translator = modelcache.Translator

func TestCapacity_NeverExceeded(t *testing.T) {
	c := modelcache.New(modelcache.Options{Capacity: 2})
	c.Put("a", &fakeTranslator{id: "a"})
	c.Put("b", &fakeTranslator{id: "b"})
	c.Put("c", &fakeTranslator{id: "c"})

	st := c.Status()
	if st.Size > st.Capacity {
		t.Fatalf("cache size %d exceeds capacity %d", st.Size, st.Capacity)
	}
	if st.Size != 2 {
		t.Fatalf("expected size 2 after overflow, got %d", st.Size)
	}
}

func TestEviction_IsLRU(t *testing.T) {
	c := modelcache.New(modelcache.Options{Capacity: 2})
	ta := &fakeTranslator{id: "a"}
	tb := &fakeTranslator{id: "b"}
	c.Put("a", ta)
	c.Put("b", tb)

	// Touch "a" so "b" becomes LRU.
	c.Get("a")

	tc := &fakeTranslator{id: "c"}
	c.Put("c", tc)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted as LRU")
	}
	if !tb.released {
		t.Fatalf("expected evicted translator released")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to survive eviction")
	}
}

func TestPut_ReplaceIsNotEviction(t *testing.T) {
	c := modelcache.New(modelcache.Options{Capacity: 2})
	old := &fakeTranslator{id: "old"}
	c.Put("a", old)
	c.Put("a", &fakeTranslator{id: "new"})

	if c.Status().Size != 1 {
		t.Fatalf("expected size 1 after replace, got %d", c.Status().Size)
	}
}

func TestEvictIdle(t *testing.T) {
	c := modelcache.New(modelcache.Options{Capacity: 5})
	c.Put("a", &fakeTranslator{id: "a"})

	evicted := c.EvictIdle(-1 * time.Second) // everything is "older" than a negative timeout
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("expected a evicted by idle sweep, got %v", evicted)
	}
}

type fixedSampler struct {
	ram, vram float64
	hasVRAM   bool
}

func (f fixedSampler) SampleRAMPercent() float64          { return f.ram }
func (f fixedSampler) SampleVRAMPercent() (float64, bool) { return f.vram, f.hasVRAM }

func TestIsMemoryCritical(t *testing.T) {
	c := modelcache.New(modelcache.Options{Capacity: 2, Sampler: fixedSampler{ram: 96}})
	if !c.IsMemoryCritical() {
		t.Fatalf("expected critical at 96%% RAM")
	}

	c2 := modelcache.New(modelcache.Options{Capacity: 2, Sampler: fixedSampler{ram: 10}})
	if c2.IsMemoryCritical() {
		t.Fatalf("expected not critical at 10%% RAM")
	}
}

func TestMemoryPressure_EmergencyEvictsAll(t *testing.T) {
	var emergencies int
	c := modelcache.New(modelcache.Options{
		Capacity:      5,
		Sampler:       fixedSampler{ram: 99},
		CheckInterval: 1,
		OnEmergency:   func(string) { emergencies++ },
	})
	c.Put("a", &fakeTranslator{id: "a"})
	// The Put call itself ticks the interval and should trigger emergency eviction.
	if c.Status().Size != 0 {
		t.Fatalf("expected emergency eviction to empty the cache, size=%d", c.Status().Size)
	}
	if emergencies == 0 {
		t.Fatalf("expected emergency callback invoked")
	}
}
