package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/helmcode/labellens/pkg/model"
	"github.com/helmcode/labellens/pkg/parser"
	"github.com/helmcode/labellens/pkg/profile"
	"github.com/helmcode/labellens/pkg/router"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var image = []byte{0xFF, 0xD8, 0xFF, 0xE0}

type result struct {
	reply *model.RawServiceReply
	err   error
}

type call struct {
	req   model.AnalysisRequest
	reply chan result
}

// fakeService hands every call to the test, which decides when and how it completes.
type fakeService struct {
	calls chan call
}

func newFakeService() *fakeService {
	return &fakeService{calls: make(chan call, 8)}
}

func (f *fakeService) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error) {
	c := call{req: req, reply: make(chan result, 1)}
	f.calls <- c
	r := <-c.reply
	return r.reply, r.err
}

// next collects n calls keyed by upload filename.
func (f *fakeService) next(t *testing.T, n int) map[string]call {
	t.Helper()
	out := make(map[string]call, n)
	for i := 0; i < n; i++ {
		c := <-f.calls
		out[c.req.Filename] = c
	}
	return out
}

type funcService func(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error)

func (f funcService) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error) {
	return f(ctx, req)
}

func reply(t *testing.T, score int, audio string) *model.RawServiceReply {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"score":   score,
		"reasons": map[string]any{"positives": []string{"oats"}, "concerns": []string{}},
		"ingredients_breakdown": map[string]any{
			"positive": []string{"oats"},
		},
	})
	require.NoError(t, err)
	encoded, err := json.Marshal(string(body))
	require.NoError(t, err)

	r := &model.RawServiceReply{HealthAnalysis: encoded}
	if audio != "" {
		r.AudioBase64 = &audio
	}
	return r
}

type recorder struct {
	mu     sync.Mutex
	states []model.PipelineState
}

func (r *recorder) listen(lens model.Lens, s model.PipelineState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) seen() []model.PipelineState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.PipelineState(nil), r.states...)
}

func setup(svc Service) (*Orchestrator, *router.Router, *profile.MemoryStore) {
	rt := router.New(nil)
	store := profile.NewMemoryStore(model.DefaultProfile())
	return New(svc, rt, store), rt, store
}

func TestOrchestrator_Success(t *testing.T) {
	svc := newFakeService()
	o, rt, _ := setup(svc)

	id, err := o.Submit(image, model.LensRealFood)
	require.NoError(t, err)
	assert.Equal(t, model.LoadingState(id), rt.State(model.LensRealFood))

	c := <-svc.calls
	assert.Equal(t, model.LensRealFood, c.req.Lens)
	assert.Equal(t, image, c.req.Image)
	c.reply <- result{reply: reply(t, 72, "UklGRg==")}
	o.Wait()

	st := rt.State(model.LensRealFood)
	require.Equal(t, model.StatusReady, st.Status)
	assert.Equal(t, id, st.RequestID)
	assert.Equal(t, 72, st.Result.Score)
	require.NotNil(t, st.Audio)
	assert.Equal(t, "UklGRg==", st.Audio.Base64)
}

func TestOrchestrator_StaleReplyDiscarded(t *testing.T) {
	for _, newerFirst := range []bool{true, false} {
		t.Run(fmt.Sprintf("newer_first=%v", newerFirst), func(t *testing.T) {
			svc := newFakeService()
			o, rt, _ := setup(svc)
			rec := &recorder{}
			defer rt.Subscribe(rec.listen)()

			first, err := o.SubmitNamed(image, "first.jpg", model.LensFocus)
			require.NoError(t, err)
			second, err := o.SubmitNamed(image, "second.jpg", model.LensFocus)
			require.NoError(t, err)
			require.Greater(t, uint64(second), uint64(first))

			calls := svc.next(t, 2)
			if newerFirst {
				calls["second.jpg"].reply <- result{reply: reply(t, 80, "")}
				calls["first.jpg"].reply <- result{reply: reply(t, 10, "")}
			} else {
				calls["first.jpg"].reply <- result{reply: reply(t, 10, "")}
				calls["second.jpg"].reply <- result{reply: reply(t, 80, "")}
			}
			o.Wait()

			st := rt.State(model.LensFocus)
			require.Equal(t, model.StatusReady, st.Status)
			assert.Equal(t, second, st.RequestID)
			assert.Equal(t, 80, st.Result.Score)

			seen := rec.seen()
			require.Len(t, seen, 3)
			assert.Equal(t, model.LoadingState(first), seen[0])
			assert.Equal(t, model.LoadingState(second), seen[1])
			assert.Equal(t, second, seen[2].RequestID)
		})
	}
}

func TestOrchestrator_TransportRejected(t *testing.T) {
	svc := funcService(func(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error) {
		return nil, errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")
	})
	o, rt, _ := setup(svc)

	id, err := o.Submit(image, model.LensPersonal)
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, model.ErrorState(id, MessageTransport), rt.State(model.LensPersonal))
	assert.Equal(t, "could not reach the analysis service", rt.State(model.LensPersonal).Message)
	assert.Equal(t, model.StatusIdle, rt.State(model.LensFocus).Status)
	assert.Equal(t, model.StatusIdle, rt.State(model.LensRealFood).Status)
}

func TestOrchestrator_UnreadableReplyBody(t *testing.T) {
	svc := funcService(func(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error) {
		return parser.DecodeReply([]byte("<html>bad gateway</html>"))
	})
	o, rt, _ := setup(svc)

	_, err := o.Submit(image, model.LensFocus)
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, parser.MessageUnreadable, rt.State(model.LensFocus).Message)
}

func TestOrchestrator_NormalizationFailureKeepsAudio(t *testing.T) {
	audio := "UklGRg=="
	svc := funcService(func(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error) {
		return &model.RawServiceReply{
			HealthAnalysis: json.RawMessage(`{"score":50,"reasons":{"positives":[],"concerns":[]}}`),
			AudioBase64:    &audio,
		}, nil
	})
	o, rt, _ := setup(svc)

	_, err := o.Submit(image, model.LensRealFood)
	require.NoError(t, err)
	o.Wait()

	st := rt.State(model.LensRealFood)
	assert.Equal(t, model.StatusError, st.Status)
	assert.Equal(t, "could not read results", st.Message)
	assert.Nil(t, st.Result)
	require.NotNil(t, st.Audio)
	assert.Equal(t, audio, st.Audio.Base64)
}

func TestOrchestrator_ServicePanics(t *testing.T) {
	svc := funcService(func(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error) {
		panic("boom")
	})
	o, rt, _ := setup(svc)

	_, err := o.Submit(image, model.LensFocus)
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, MessageTransport, rt.State(model.LensFocus).Message)
}

func TestOrchestrator_NilReply(t *testing.T) {
	svc := funcService(func(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error) {
		return nil, nil
	})
	o, rt, _ := setup(svc)

	_, err := o.Submit(image, model.LensFocus)
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, model.StatusError, rt.State(model.LensFocus).Status)
}

func TestOrchestrator_RejectsInvalidInput(t *testing.T) {
	svc := funcService(func(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error) {
		t.Error("service must not be called")
		return nil, nil
	})
	o, rt, _ := setup(svc)

	_, err := o.Submit(nil, model.LensFocus)
	assert.Error(t, err)
	_, err = o.Submit(image, "sugar")
	assert.Error(t, err)
	_, err = o.SubmitRequest(model.AnalysisRequest{Lens: model.LensFocus})
	assert.Error(t, err)
	o.Wait()

	for lens, st := range rt.Snapshot() {
		assert.Equal(t, model.IdleState(), st, "lens %s", lens)
	}
}

func TestOrchestrator_ProfileSnapshot(t *testing.T) {
	svc := newFakeService()
	o, _, store := setup(svc)
	require.NoError(t, store.SetAllergen("peanut", true))

	_, err := o.Submit(image, model.LensPersonal)
	require.NoError(t, err)
	c := <-svc.calls

	require.NoError(t, store.SetAllergen("peanut", false))
	require.NoError(t, store.AddFlag("no pork"))

	assert.True(t, c.req.Profile.Peanut)
	assert.Empty(t, c.req.Profile.Flags)

	c.reply <- result{reply: reply(t, 40, "")}
	o.Wait()
}

func TestOrchestrator_LensesIndependent(t *testing.T) {
	svc := newFakeService()
	o, rt, _ := setup(svc)

	for _, l := range model.AllLenses() {
		_, err := o.SubmitNamed(image, string(l)+".jpg", l)
		require.NoError(t, err)
	}
	calls := svc.next(t, 3)
	calls["focus.jpg"].reply <- result{err: errors.New("timeout")}
	calls["real_food.jpg"].reply <- result{reply: reply(t, 90, "")}
	calls["personal.jpg"].reply <- result{reply: reply(t, 30, "")}
	o.Wait()

	assert.Equal(t, model.StatusError, rt.State(model.LensFocus).Status)
	assert.Equal(t, 90, rt.State(model.LensRealFood).Result.Score)
	assert.Equal(t, 30, rt.State(model.LensPersonal).Result.Score)
}

func TestOrchestrator_ContextPassedToService(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "capture-session")
	svc := funcService(func(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error) {
		assert.Equal(t, "capture-session", ctx.Value(key{}))
		return nil, ctx.Err()
	})
	rt := router.New(nil)
	o := New(svc, rt, profile.NewMemoryStore(model.DefaultProfile()), WithContext(ctx), WithLogger(nil))

	_, err := o.Submit(image, model.LensFocus)
	require.NoError(t, err)
	o.Wait()
	assert.Equal(t, model.StatusError, rt.State(model.LensFocus).Status)
}
