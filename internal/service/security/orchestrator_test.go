package security

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/errno"
)

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) SecurityCheckFailed(_ context.Context, _ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func result(d model.Decision) CheckFunc {
	return func(context.Context) (model.SecurityCheckResult, error) {
		return model.SecurityCheckResult{Decision: d, TraceID: "trace-1"}, nil
	}
}

func TestResolvedDecisions(t *testing.T) {
	tests := []struct {
		decision model.Decision
		force    bool
		permits  bool
	}{
		{model.DecisionPass, true, true},
		{model.DecisionWarn, true, true},
		{model.DecisionDanger, true, true},
		{model.DecisionForbidden, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			o := New("0xabc", false, time.Second, nil)
			assert.Equal(t, model.DecisionLoading, o.State().Decision)

			o.Run(context.Background(), result(tt.decision))
			st := o.State()
			assert.Equal(t, tt.decision, st.Decision)
			assert.Equal(t, tt.force, st.ForceProcess)
			assert.Equal(t, tt.permits, st.Permits())
			assert.Equal(t, "trace-1", st.Result.TraceID)

			select {
			case <-o.Done():
			default:
				t.Fatal("done not closed")
			}
		})
	}
}

func TestFailureDegradesToPass(t *testing.T) {
	failures := map[string]CheckFunc{
		"error": func(context.Context) (model.SecurityCheckResult, error) {
			return model.SecurityCheckResult{}, errors.New("502 bad gateway")
		},
		"malformed": result("maybe"),
		"loading":   result(model.DecisionLoading),
		"timeout": func(ctx context.Context) (model.SecurityCheckResult, error) {
			<-ctx.Done()
			return model.SecurityCheckResult{}, ctx.Err()
		},
	}
	for name, check := range failures {
		t.Run(name, func(t *testing.T) {
			rep := &recordingReporter{}
			o := New("0xabc", false, 20*time.Millisecond, rep)
			o.Run(context.Background(), check)

			st := o.State()
			assert.Equal(t, model.DecisionPass, st.Decision)
			assert.Equal(t, UnavailableAlert, st.Result.Alert)
			assert.Empty(t, st.Result.TraceID)
			require.NotNil(t, st.Result.Error)
			assert.Equal(t, errno.CodeSecurityUnavailable, st.Result.Error.Code)
			assert.True(t, st.ForceProcess)
			assert.Len(t, rep.errs, 1)
		})
	}
}

func TestNeverReturnsToLoading(t *testing.T) {
	o := New("0xabc", false, 0, nil)
	o.Run(context.Background(), result(model.DecisionDanger))

	called := false
	o.Run(context.Background(), func(context.Context) (model.SecurityCheckResult, error) {
		called = true
		return model.SecurityCheckResult{Decision: model.DecisionPass}, nil
	})
	assert.False(t, called)
	assert.Equal(t, model.DecisionDanger, o.State().Decision)
}

func TestOnDemandStartsPending(t *testing.T) {
	o := New("0xabc", true, 0, nil)
	assert.Equal(t, model.DecisionPending, o.State().Decision)
	assert.False(t, o.State().Permits())

	o.Run(context.Background(), result(model.DecisionPass))
	assert.Equal(t, model.DecisionPass, o.State().Decision)
}

func TestForceProcess(t *testing.T) {
	o := New("0xabc", false, 0, nil)
	o.Run(context.Background(), result(model.DecisionWarn))
	require.NoError(t, o.SetForceProcess(false))
	assert.False(t, o.State().Permits())
	require.NoError(t, o.SetForceProcess(true))
	assert.True(t, o.State().Permits())

	f := New("0xabc", false, 0, nil)
	f.Run(context.Background(), result(model.DecisionForbidden))
	assert.ErrorIs(t, f.SetForceProcess(true), ErrForbidden)
	assert.False(t, f.State().Permits())
}
