package lease

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMayStore(t *testing.T) {
	const now = int64(10000)

	held := &Meta{Owner: "node-b", Timestamp: now - 100}

	tests := []struct {
		name      string
		existing  *Meta
		candidate Meta
		leasing   bool
		want      bool
	}{
		{
			name:      "open slot",
			existing:  nil,
			candidate: Meta{Owner: "node-a", Timestamp: now},
			leasing:   true,
			want:      true,
		},
		{
			name:      "leasing disabled ignores foreign lease",
			existing:  held,
			candidate: Meta{Owner: "node-a", Timestamp: now},
			leasing:   false,
			want:      true,
		},
		{
			name:      "owner re-asserts own key",
			existing:  held,
			candidate: Meta{Owner: "node-b", Timestamp: now},
			leasing:   true,
			want:      true,
		},
		{
			name:      "foreign unexpired lease rejects newer write",
			existing:  held,
			candidate: Meta{Owner: "node-a", Timestamp: now},
			leasing:   true,
			want:      false,
		},
		{
			name:      "candidate older than existing record wins",
			existing:  &Meta{Owner: "node-b", Timestamp: now},
			candidate: Meta{Owner: "node-a", Timestamp: now - 1},
			leasing:   true,
			want:      true,
		},
		{
			name:      "lapsed lease is open to anyone",
			existing:  &Meta{Owner: "node-b", Timestamp: now - Window - 1},
			candidate: Meta{Owner: "node-a", Timestamp: now},
			leasing:   true,
			want:      true,
		},
		{
			name:      "lease held until strictly past the window",
			existing:  &Meta{Owner: "node-b", Timestamp: now - Window},
			candidate: Meta{Owner: "node-a", Timestamp: now},
			leasing:   true,
			want:      false,
		},
		{
			name:      "equal timestamps, smaller owner wins",
			existing:  &Meta{Owner: "node-b", Timestamp: now},
			candidate: Meta{Owner: "node-a", Timestamp: now},
			leasing:   true,
			want:      true,
		},
		{
			name:      "equal timestamps, larger owner loses",
			existing:  &Meta{Owner: "node-a", Timestamp: now},
			candidate: Meta{Owner: "node-b", Timestamp: now},
			leasing:   true,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MayStore(tt.existing, tt.candidate, tt.leasing, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The outcome must not depend on which of two concurrent writes a node
// sees first: applying them in either order leaves the same winner.
func TestMayStoreArrivalOrderIndependence(t *testing.T) {
	const now = int64(10000)
	a := Meta{Owner: "node-a", Timestamp: now}
	b := Meta{Owner: "node-b", Timestamp: now}

	// a first, then b: b is rejected.
	assert.True(t, MayStore(nil, a, true, now))
	assert.False(t, MayStore(&a, b, true, now))

	// b first, then a: a overrides b.
	assert.True(t, MayStore(nil, b, true, now))
	assert.True(t, MayStore(&b, a, true, now))
}

func TestMetaExpired(t *testing.T) {
	m := Meta{Owner: "node-a", Timestamp: 1000}
	assert.False(t, m.Expired(1000+Window))
	assert.True(t, m.Expired(1000+Window+1))
}

func BenchmarkMayStore(b *testing.B) {
	existing := &Meta{Owner: "node-b", Timestamp: 9900}
	candidate := Meta{Owner: "node-a", Timestamp: 10000}
	for i := 0; i < b.N; i++ {
		MayStore(existing, candidate, true, 10000)
	}
}
