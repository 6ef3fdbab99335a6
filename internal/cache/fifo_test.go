package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFIFOStore_Get(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		entry     Entry
		at        time.Time
		wantFound bool
	}{
		{
			name:      "returns value before expiry",
			entry:     Entry{Key: "a", Value: []byte("1"), ExpiresAt: base.Add(time.Minute)},
			at:        base.Add(59 * time.Second),
			wantFound: true,
		},
		{
			name:      "misses at the expiry instant",
			entry:     Entry{Key: "a", Value: []byte("1"), ExpiresAt: base.Add(time.Minute)},
			at:        base.Add(time.Minute),
			wantFound: false,
		},
		{
			name:      "zero expiry never expires",
			entry:     Entry{Key: "a", Value: []byte("1")},
			at:        base.Add(24 * time.Hour),
			wantFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFIFOStore(4)
			s.set(tt.entry)

			got, found := s.get("a", tt.at)
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, tt.entry.Value, got.Value)
			} else {
				assert.Equal(t, 0, s.len(), "expired entry should be dropped on read")
			}
		})
	}
}

func TestFIFOStore_EvictsOldestInsertion(t *testing.T) {
	s := newFIFOStore(2)

	_, evicted := s.set(Entry{Key: "a", Value: []byte("1")})
	assert.False(t, evicted)
	_, evicted = s.set(Entry{Key: "b", Value: []byte("2")})
	assert.False(t, evicted)

	// Reads do not refresh position.
	_, _ = s.get("a", time.Now())

	key, evicted := s.set(Entry{Key: "c", Value: []byte("3")})
	assert.True(t, evicted)
	assert.Equal(t, "a", key)
	assert.Equal(t, []string{"b", "c"}, s.keys())
}

func TestFIFOStore_OverwriteKeepsPosition(t *testing.T) {
	s := newFIFOStore(2)
	s.set(Entry{Key: "a", Value: []byte("1")})
	s.set(Entry{Key: "b", Value: []byte("2")})

	_, evicted := s.set(Entry{Key: "a", Value: []byte("updated")})
	assert.False(t, evicted)
	assert.Equal(t, 2, s.len())

	key, evicted := s.set(Entry{Key: "c", Value: []byte("3")})
	assert.True(t, evicted)
	assert.Equal(t, "a", key)

	got, found := s.get("b", time.Now())
	assert.True(t, found)
	assert.Equal(t, []byte("2"), got.Value)
}

func TestFIFOStore_DeletePrefix(t *testing.T) {
	s := newFIFOStore(10)
	for _, k := range []string{"user:1", "user:2", "order:1", "users"} {
		s.set(Entry{Key: k, Value: []byte(k)})
	}

	removed := s.deletePrefix("user:")

	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"order:1", "users"}, s.keys())
}

func TestFIFOStore_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newFIFOStore(10)
	s.set(Entry{Key: "short", ExpiresAt: now.Add(time.Second)})
	s.set(Entry{Key: "long", ExpiresAt: now.Add(time.Hour)})
	s.set(Entry{Key: "forever"})

	removed := s.sweep(now.Add(time.Minute))

	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"long", "forever"}, s.keys())
}
