package emotes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
)

type fakeIdentity struct {
	userID string
	err    error
}

func (f *fakeIdentity) ResolveUserID(ctx context.Context, login string) (string, error) {
	return f.userID, f.err
}

type fakeChannelSource struct {
	mapping domain.EmoteMapping
	err     error
	gotKey  string
}

func (f *fakeChannelSource) FetchChannel(ctx context.Context, key string) (domain.EmoteMapping, error) {
	f.gotKey = key
	return f.mapping, f.err
}

type fakeGlobalSource struct {
	mapping domain.EmoteMapping
	err     error
	calls   atomic.Int32
	block   chan struct{}
}

func (f *fakeGlobalSource) FetchGlobal(ctx context.Context) (domain.EmoteMapping, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.mapping, f.err
}

func TestDirectory_ChannelFetchesBothSources(t *testing.T) {
	sourceA := &fakeChannelSource{mapping: domain.EmoteMapping{"OMEGALUL": "https://a.example/1"}}
	sourceB := &fakeChannelSource{mapping: domain.EmoteMapping{"CatJAM": "https://b.example/1"}}
	d := NewDirectory(&fakeIdentity{userID: "123"}, sourceA, sourceB, &fakeGlobalSource{})

	result := d.Channel(t.Context(), "SomeChannel")

	assert.Equal(t, "123", sourceA.gotKey)
	assert.Equal(t, "somechannel", sourceB.gotKey)
	assert.Equal(t, domain.EmoteMapping{"OMEGALUL": "https://a.example/1"}, result.SourceA)
	assert.Equal(t, domain.EmoteMapping{"CatJAM": "https://b.example/1"}, result.SourceB)
	assert.Empty(t, result.Warnings)
}

func TestDirectory_IdentityFailureSkipsBothSources(t *testing.T) {
	sourceA := &fakeChannelSource{mapping: domain.EmoteMapping{"OMEGALUL": "https://a.example/1"}}
	sourceB := &fakeChannelSource{mapping: domain.EmoteMapping{"CatJAM": "https://b.example/1"}}
	d := NewDirectory(&fakeIdentity{err: errors.New("helix down")}, sourceA, sourceB, &fakeGlobalSource{})

	result := d.Channel(t.Context(), "somechannel")

	assert.Empty(t, result.SourceA)
	assert.Empty(t, result.SourceB)
	require.Len(t, result.Warnings, 1)
	assert.Empty(t, sourceA.gotKey, "source A must not be queried")
	assert.Empty(t, sourceB.gotKey, "source B must not be queried")
}

func TestDirectory_SourceFailureDegrades(t *testing.T) {
	sourceA := &fakeChannelSource{err: errors.New("7tv down")}
	sourceB := &fakeChannelSource{mapping: domain.EmoteMapping{"CatJAM": "https://b.example/1"}}
	d := NewDirectory(&fakeIdentity{userID: "123"}, sourceA, sourceB, &fakeGlobalSource{})

	result := d.Channel(t.Context(), "somechannel")

	assert.Empty(t, result.SourceA)
	assert.Equal(t, domain.EmoteMapping{"CatJAM": "https://b.example/1"}, result.SourceB)
	require.Len(t, result.Warnings, 1)
}

func TestDirectory_GlobalCachedAfterFirstFetch(t *testing.T) {
	global := &fakeGlobalSource{mapping: domain.EmoteMapping{"modCheck": "https://g.example/1"}}
	d := NewDirectory(&fakeIdentity{userID: "123"}, &fakeChannelSource{}, &fakeChannelSource{}, global)

	first, err := d.Global(t.Context())
	require.NoError(t, err)
	second, err := d.Global(t.Context())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), global.calls.Load())
}

func TestDirectory_GlobalSingleFlight(t *testing.T) {
	global := &fakeGlobalSource{
		mapping: domain.EmoteMapping{"modCheck": "https://g.example/1"},
		block:   make(chan struct{}),
	}
	d := NewDirectory(&fakeIdentity{userID: "123"}, &fakeChannelSource{}, &fakeChannelSource{}, global)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Global(context.Background())
			assert.NoError(t, err)
		}()
	}

	close(global.block)
	wg.Wait()

	assert.Equal(t, int32(1), global.calls.Load())
}

func TestDirectory_InvalidateGlobalForcesRefetch(t *testing.T) {
	global := &fakeGlobalSource{mapping: domain.EmoteMapping{"modCheck": "https://g.example/1"}}
	d := NewDirectory(&fakeIdentity{userID: "123"}, &fakeChannelSource{}, &fakeChannelSource{}, global)

	_, err := d.Global(t.Context())
	require.NoError(t, err)

	d.InvalidateGlobal()

	_, err = d.Global(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(2), global.calls.Load())
}

func TestDirectory_GlobalFetchErrorNotCached(t *testing.T) {
	global := &fakeGlobalSource{err: errors.New("7tv down")}
	d := NewDirectory(&fakeIdentity{userID: "123"}, &fakeChannelSource{}, &fakeChannelSource{}, global)

	_, err := d.Global(t.Context())
	require.Error(t, err)

	global.err = nil
	global.mapping = domain.EmoteMapping{"modCheck": "https://g.example/1"}

	mapping, err := d.Global(t.Context())
	require.NoError(t, err)
	assert.Len(t, mapping, 1)
}
