package router

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmcode/labellens/pkg/model"
)

func analysis(lens model.Lens, score int) model.Analysis {
	return model.Analysis{Result: model.AnalysisResult{Lens: lens, Score: score}}
}

func TestRouter_InitialState(t *testing.T) {
	r := New(nil)
	for _, l := range model.AllLenses() {
		assert.Equal(t, model.StatusIdle, r.State(l).Status)
	}
	lens, st := r.Current()
	assert.Equal(t, model.LensRealFood, lens)
	assert.Equal(t, model.StatusIdle, st.Status)
}

func TestRouter_BeginApply(t *testing.T) {
	r := New(nil)

	id, err := r.Begin(model.LensFocus)
	require.NoError(t, err)
	assert.Equal(t, model.LoadingState(id), r.State(model.LensFocus))

	require.True(t, r.Apply(id, model.LensFocus, Ok(analysis(model.LensFocus, 40))))
	st := r.State(model.LensFocus)
	assert.Equal(t, model.StatusReady, st.Status)
	assert.Equal(t, id, st.RequestID)
	require.NotNil(t, st.Result)
	assert.Equal(t, 40, st.Result.Score)

	// Settled slots ignore repeated outcomes for the same id.
	assert.False(t, r.Apply(id, model.LensFocus, Err("late")))
	assert.Equal(t, model.StatusReady, r.State(model.LensFocus).Status)
}

func TestRouter_ErrorOutcome(t *testing.T) {
	r := New(nil)
	id, err := r.Begin(model.LensPersonal)
	require.NoError(t, err)

	require.True(t, r.Apply(id, model.LensPersonal, Err("could not reach the analysis service")))
	st := r.State(model.LensPersonal)
	assert.Equal(t, model.StatusError, st.Status)
	assert.Equal(t, "could not reach the analysis service", st.Message)
	assert.Nil(t, st.Result)
}

func TestRouter_IDsIncreaseAcrossLenses(t *testing.T) {
	r := New(nil)
	var last model.RequestID
	for i := 0; i < 3; i++ {
		for _, l := range model.AllLenses() {
			id, err := r.Begin(l)
			require.NoError(t, err)
			assert.Greater(t, uint64(id), uint64(last))
			last = id
		}
	}
}

func TestRouter_StaleReplyDiscarded(t *testing.T) {
	t.Run("late first reply after second settled", func(t *testing.T) {
		r := New(nil)
		first, _ := r.Begin(model.LensRealFood)
		second, _ := r.Begin(model.LensRealFood)

		require.True(t, r.Apply(second, model.LensRealFood, Ok(analysis(model.LensRealFood, 80))))
		want := r.State(model.LensRealFood)

		assert.False(t, r.Apply(first, model.LensRealFood, Ok(analysis(model.LensRealFood, 10))))
		assert.Equal(t, want, r.State(model.LensRealFood))
	})

	t.Run("late first reply while second in flight", func(t *testing.T) {
		r := New(nil)
		first, _ := r.Begin(model.LensRealFood)
		second, _ := r.Begin(model.LensRealFood)

		assert.False(t, r.Apply(first, model.LensRealFood, Err("boom")))
		assert.Equal(t, model.LoadingState(second), r.State(model.LensRealFood))
	})

	t.Run("reply for another lens's id", func(t *testing.T) {
		r := New(nil)
		focusID, _ := r.Begin(model.LensFocus)
		_, _ = r.Begin(model.LensPersonal)

		assert.False(t, r.Apply(focusID, model.LensPersonal, Ok(analysis(model.LensPersonal, 1))))
		assert.Equal(t, model.StatusLoading, r.State(model.LensPersonal).Status)
	})

	t.Run("idle slot ignores replies", func(t *testing.T) {
		r := New(nil)
		assert.False(t, r.Apply(1, model.LensFocus, Ok(analysis(model.LensFocus, 1))))
		assert.Equal(t, model.StatusIdle, r.State(model.LensFocus).Status)
	})
}

func TestRouter_ResubmitAfterSettled(t *testing.T) {
	r := New(nil)
	id, _ := r.Begin(model.LensFocus)
	r.Apply(id, model.LensFocus, Err("could not read results"))

	next, err := r.Begin(model.LensFocus)
	require.NoError(t, err)
	assert.Equal(t, model.LoadingState(next), r.State(model.LensFocus))
}

func TestRouter_ActiveLensDoesNotTouchSlots(t *testing.T) {
	r := New(nil)
	id, _ := r.Begin(model.LensRealFood)
	r.Apply(id, model.LensRealFood, Ok(analysis(model.LensRealFood, 72)))
	pid, _ := r.Begin(model.LensPersonal)

	before := r.Snapshot()
	require.NoError(t, r.SetActiveLens(model.LensPersonal))
	assert.Equal(t, before, r.Snapshot())

	lens, st := r.Current()
	assert.Equal(t, model.LensPersonal, lens)
	assert.Equal(t, model.LoadingState(pid), st)

	require.NoError(t, r.SetActiveLens(model.LensRealFood))
	_, st = r.Current()
	assert.Equal(t, 72, st.Result.Score)

	assert.Error(t, r.SetActiveLens("bogus"))
	assert.Equal(t, model.LensRealFood, r.ActiveLens())
}

func TestRouter_UnknownLens(t *testing.T) {
	r := New(nil)
	_, err := r.Begin("bogus")
	assert.Error(t, err)
	assert.Equal(t, model.StatusIdle, r.State("bogus").Status)
	assert.Len(t, r.Snapshot(), 3)
}

func TestRouter_Subscribe(t *testing.T) {
	r := New(nil)

	type event struct {
		lens   model.Lens
		status model.Status
		id     model.RequestID
	}
	var events []event
	unsubscribe := r.Subscribe(func(l model.Lens, s model.PipelineState) {
		events = append(events, event{l, s.Status, s.RequestID})
	})

	first, _ := r.Begin(model.LensFocus)
	second, _ := r.Begin(model.LensFocus)
	r.Apply(first, model.LensFocus, Ok(analysis(model.LensFocus, 5)))
	r.Apply(second, model.LensFocus, Ok(analysis(model.LensFocus, 6)))

	assert.Equal(t, []event{
		{model.LensFocus, model.StatusLoading, first},
		{model.LensFocus, model.StatusLoading, second},
		{model.LensFocus, model.StatusReady, second},
	}, events)

	unsubscribe()
	_, _ = r.Begin(model.LensFocus)
	assert.Len(t, events, 3)
}

func TestRouter_ConcurrentOutOfOrderReplies(t *testing.T) {
	r := New(nil)

	ids := make([]model.RequestID, 50)
	for i := range ids {
		ids[i], _ = r.Begin(model.LensRealFood)
	}
	latest := ids[len(ids)-1]

	var wg sync.WaitGroup
	for i := len(ids) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(id model.RequestID) {
			defer wg.Done()
			r.Apply(id, model.LensRealFood, Ok(analysis(model.LensRealFood, int(id%100))))
		}(ids[i])
	}
	wg.Wait()

	st := r.State(model.LensRealFood)
	assert.Equal(t, model.StatusReady, st.Status)
	assert.Equal(t, latest, st.RequestID)
	assert.Equal(t, int(latest%100), st.Result.Score)
}
