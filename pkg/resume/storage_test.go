package resume

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	s := NewMemoryStorage()

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	want := State{TaskSlug: "onboarding", StepIndex: 4, StartedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, s.Save(want))

	got, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.TaskSlug, got.TaskSlug)
	assert.Equal(t, want.StepIndex, got.StepIndex)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))

	require.NoError(t, s.Clear())
	_, ok, err = s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStorageSaveOverwrites(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.Save(State{TaskSlug: "a", StepIndex: 1}))
	require.NoError(t, s.Save(State{TaskSlug: "b", StepIndex: 2}))

	got, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", got.TaskSlug)
}

func TestGoqueryDocumentHas(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><div id="target" class="card">x</div></body></html>`))
	require.NoError(t, err)
	g := NewGoqueryDocument(doc)

	assert.True(t, g.Has("#target"))
	assert.True(t, g.Has("div.card"))
	assert.False(t, g.Has("#missing"))
	assert.False(t, g.Has(""))
	assert.False(t, g.Has("#bad[["))
}

func TestGoqueryDocumentNil(t *testing.T) {
	assert.False(t, NewGoqueryDocument(nil).Has("#x"))
}
