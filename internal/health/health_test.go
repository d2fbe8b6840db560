package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewChecker(t *testing.T) {
	c := NewChecker()
	if c == nil || c.liveChecks == nil || c.readyChecks == nil {
		t.Fatal("NewChecker did not initialize maps")
	}
}

func TestRegisterLivenessIsolatedFromReadiness(t *testing.T) {
	c := NewChecker()

	liveCalled := false
	c.RegisterLiveness("proc", func() Check {
		liveCalled = true
		return Check{Status: StatusHealthy}
	})

	readyCalled := false
	c.RegisterReadiness("quorum", func() Check {
		readyCalled = true
		return Check{Status: StatusHealthy}
	})

	c.CheckLiveness()
	if !liveCalled || readyCalled {
		t.Errorf("liveCalled=%v readyCalled=%v, want true/false", liveCalled, readyCalled)
	}
}

func TestUpstreamCheck(t *testing.T) {
	up := true
	fn := UpstreamCheck(func() bool { return up })
	if got := fn(); got.Status != StatusHealthy {
		t.Errorf("status = %v, want healthy while streaming", got.Status)
	}
	up = false
	if got := fn(); got.Status != StatusDegraded {
		t.Errorf("status = %v, want degraded when not streaming", got.Status)
	}
}

func TestQuorumCheck(t *testing.T) {
	fn := QuorumCheck(func() (bool, int, int) { return false, 1, 2 })
	if got := fn(); got.Status != StatusUnhealthy {
		t.Errorf("status = %v, want unhealthy below quorum", got.Status)
	}
	fn = QuorumCheck(func() (bool, int, int) { return true, 2, 2 })
	if got := fn(); got.Status != StatusHealthy {
		t.Errorf("status = %v, want healthy at quorum", got.Status)
	}
}

func TestReadinessHandlerReturns503WhenUnhealthy(t *testing.T) {
	c := NewChecker()
	c.RegisterReadiness("quorum", func() Check { return Check{Status: StatusUnhealthy} })

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("body status = %v, want unhealthy", resp.Status)
	}
}

func TestLivenessHandlerReturns200WhenHealthy(t *testing.T) {
	c := NewChecker()
	c.RegisterLiveness("proc", func() Check { return Check{Status: StatusHealthy} })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}
}
