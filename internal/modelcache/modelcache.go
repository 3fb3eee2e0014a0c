// Package modelcache bounds the number of loaded Translator handles and
// frees their resources aggressively on eviction. It implements the LRU
// discipline as a doubly linked list plus a hash map, following
// LRUPipelineCache's move-to-end-on-get/put, pop-oldest-on-overflow shape.
package modelcache

import (
	"container/list"
	"sync"
	"time"
)

// Translator is the subset of the translator capability the cache needs to
// manage lifecycle — moving the model off an accelerator and releasing it
// on eviction. Concrete translator implementations satisfy this trivially.
type Translator interface {
	MoveToCPU()
	Release()
}

// MemorySampler reports current RAM/VRAM utilization as percentages in
// [0,100]. VRAM sampling returns (0, false) on a CPU-only deployment.
type MemorySampler interface {
	SampleRAMPercent() float64
	SampleVRAMPercent() (float64, bool)
}

type entry struct {
	key        string
	translator Translator
	lastAccess time.Time
}

// Status is a point-in-time snapshot of cache occupancy and memory
// pressure`).
type Status struct {
	Capacity int
	Size     int
	Keys     []string
	RAMPct   float64
	VRAMPct  float64
	HasVRAM  bool
}

// Cache is a capacity-bounded LRU of loaded Translators with memory-aware
// and idle eviction. All access is serialized behind a single mutex — model
// churn is low relative to request rate, so lock contention never becomes
// the bottleneck.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element // key -> element wrapping *entry
	order    *list.List               // front = MRU, back = LRU
	aliases  map[string]string        // aliasKey -> ownerKey

	sampler       MemorySampler
	checkInterval int
	opCount       int
	ramWarning    float64
	ramCritical   float64
	vramWarning   float64
	vramCritical  float64

	onEmergency func(msg string)
	onEvict     func(key string)
}

// Options configures a new Cache.
type Options struct {
	Capacity      int
	Sampler       MemorySampler
	CheckInterval int // operations between memory-pressure samples; <=0 disables
	RAMWarningPct, RAMCriticalPct   float64
	VRAMWarningPct, VRAMCriticalPct float64
	OnEmergency func(msg string)
	OnEvict     func(key string)
}

// New creates a Cache bounded to opts.Capacity (minimum 1).
func New(opts Options) *Cache {
	cap := opts.Capacity
	if cap < 1 {
		cap = 1
	}
	return &Cache{
		capacity:      cap,
		entries:       make(map[string]*list.Element),
		order:         list.New(),
		aliases:       make(map[string]string),
		sampler:       opts.Sampler,
		checkInterval: opts.CheckInterval,
		ramWarning:    opts.RAMWarningPct,
		ramCritical:   opts.RAMCriticalPct,
		vramWarning:   opts.VRAMWarningPct,
		vramCritical:  opts.VRAMCriticalPct,
		onEmergency:   opts.OnEmergency,
		onEvict:       opts.OnEvict,
	}
}

// Get returns the Translator cached under key, moving it to MRU position
// and touching lastAccess. Every call counts toward the memory-pressure
// sampling cadence regardless of hit/miss.
func (c *Cache) Get(key string) (Translator, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick()

	if owner, ok := c.aliases[key]; ok {
		key = owner
	}

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	e := el.Value.(*entry)
	e.lastAccess = time.Now()
	return e.translator, true
}

// Put inserts or replaces the Translator cached under key. A replacement of
// an existing key is not an eviction. If the cache exceeds capacity after
// insertion, the LRU entry is evicted (moved to CPU, released, dropped).
// The memory-pressure tick runs after the insertion, so an emergency
// eviction triggered by this call also covers the entry just stored.
func (c *Cache) Put(key string, t Translator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.tick()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.translator = t
		e.lastAccess = time.Now()
		c.order.MoveToFront(el)
		return
	}

	e := &entry{key: key, translator: t, lastAccess: time.Now()}
	el := c.order.PushFront(e)
	c.entries[key] = el

	if c.order.Len() > c.capacity {
		c.evictLRULocked()
	}
}

// PutAlias registers aliasKey as a weak reference to ownerKey's Translator
// — used when one multilingual model serves multiple pairs. The alias is
// purged automatically when ownerKey is evicted.
func (c *Cache) PutAlias(aliasKey, ownerKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[ownerKey]; ok {
		c.aliases[aliasKey] = ownerKey
	}
}

// EvictIdle evicts every entry whose lastAccess age exceeds timeout,
// returning the evicted keys.
func (c *Cache) EvictIdle(timeout time.Duration) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []string
	now := time.Now()

	var next *list.Element
	for el := c.order.Back(); el != nil; el = next {
		next = el.Prev()
		e := el.Value.(*entry)
		if now.Sub(e.lastAccess) > timeout {
			c.removeLocked(el)
			evicted = append(evicted, e.key)
		}
	}
	return evicted
}

// IsMemoryCritical reports whether RAM or VRAM utilization is at or above
// the emergency threshold (95%).
func (c *Cache) IsMemoryCritical() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memoryEmergencyLocked()
}

// Status returns a snapshot of capacity, occupancy, and memory pressure.
func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry).key)
	}

	ram, vram, hasVRAM := c.sampleLocked()
	return Status{
		Capacity: c.capacity,
		Size:     c.order.Len(),
		Keys:     keys,
		RAMPct:   ram,
		VRAMPct:  vram,
		HasVRAM:  hasVRAM,
	}
}

// tick runs the interleaved memory-pressure check every checkInterval
// operations. Caller must hold c.mu.
func (c *Cache) tick() {
	c.opCount++
	if c.checkInterval <= 0 || c.opCount%c.checkInterval != 0 {
		return
	}
	c.checkMemoryLocked()
}

func (c *Cache) sampleLocked() (ram, vram float64, hasVRAM bool) {
	if c.sampler == nil {
		return 0, 0, false
	}
	ram = c.sampler.SampleRAMPercent()
	vram, hasVRAM = c.sampler.SampleVRAMPercent()
	return ram, vram, hasVRAM
}

func (c *Cache) memoryEmergencyLocked() bool {
	ram, vram, hasVRAM := c.sampleLocked()
	if ram >= 95.0 {
		return true
	}
	return hasVRAM && vram >= 95.0
}

func (c *Cache) checkMemoryLocked() {
	ram, vram, hasVRAM := c.sampleLocked()
	emergency := ram >= 95.0 || (hasVRAM && vram >= 95.0)
	critical := ram >= c.ramCritical || (hasVRAM && vram >= c.vramCritical)
	warning := ram >= c.ramWarning || (hasVRAM && vram >= c.vramWarning)

	switch {
	case emergency:
		c.evictAllLocked()
		if c.onEmergency != nil {
			c.onEmergency("memory emergency: evicted all cached models")
		}
	case critical:
		if c.order.Len() > 0 {
			c.evictLRULocked()
		}
	case warning:
		if c.onEmergency != nil {
			c.onEmergency("memory warning: approaching critical threshold")
		}
	}
}

func (c *Cache) evictLRULocked() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.removeLocked(el)
}

func (c *Cache) evictAllLocked() {
	var next *list.Element
	for el := c.order.Front(); el != nil; el = next {
		next = el.Next()
		c.removeLocked(el)
	}
}

// removeLocked detaches el from the order list and entries map, purges any
// aliases pointing at it, and releases the Translator's device resources.
// Caller must hold c.mu.
func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.entries, e.key)

	for alias, owner := range c.aliases {
		if owner == e.key {
			delete(c.aliases, alias)
		}
	}

	if e.translator != nil {
		e.translator.MoveToCPU()
		e.translator.Release()
	}

	if c.onEvict != nil {
		c.onEvict(e.key)
	}
}
