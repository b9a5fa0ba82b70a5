package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/api"
	"github.com/warp/shift-engine/shift"
	"github.com/warp/shift-engine/shift/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) (*store.Memory, *httptest.Server) {
	t.Helper()

	mem := store.NewMemory()
	mem.SetPayConfig("emp-1", shift.PayConfig{
		PercentWorker:   decimal.NewFromInt(60),
		PercentBusiness: decimal.NewFromInt(40),
	})

	lc := shift.NewLifecycle(mem, mem, mem, nil)
	stats := shift.NewStats(mem, mem)
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(lc, stats)))
	t.Cleanup(srv.Close)
	return mem, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// =============================================================================
// END-TO-END HANDLER TESTS
// =============================================================================

func TestOpenCloseFlow(t *testing.T) {
	// GIVEN: a running server
	// WHEN: opening then closing a shift with items
	// THEN: the close response carries the settlement

	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/shifts/open", api.OpenShiftRequest{
		WorkerID: "emp-1", Day: "2025-03-10",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open status = %d", resp.StatusCode)
	}
	var opened api.ShiftDTO
	decodeBody(t, resp, &opened)
	if opened.Status != "open" {
		t.Errorf("status = %s", opened.Status)
	}

	resp = postJSON(t, srv.URL+"/api/shifts/close", api.CloseShiftRequest{
		WorkerID: "emp-1", Day: "2025-03-10",
		Items: []api.LineItemRequest{
			{ClientName: "a", ServiceName: "haircut", Revenue: "3000", Consumables: "150"},
			{ClientName: "b", ServiceName: "coloring", Revenue: "2000", Consumables: "50"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close status = %d", resp.StatusCode)
	}
	var closed api.CloseShiftResponse
	decodeBody(t, resp, &closed)

	if closed.Shift.Status != "closed" {
		t.Errorf("shift status = %s", closed.Shift.Status)
	}
	if closed.Settlement.WorkerShare != "3000" {
		t.Errorf("worker share = %s, want 3000", closed.Settlement.WorkerShare)
	}
	if closed.Settlement.BusinessShare != "2200" {
		t.Errorf("business share = %s, want 2200", closed.Settlement.BusinessShare)
	}
	if len(closed.Warnings) != 0 {
		t.Errorf("warnings = %v", closed.Warnings)
	}
}

func TestClose_AlreadyClosedGetsConflict(t *testing.T) {
	_, srv := newTestServer(t)

	postJSON(t, srv.URL+"/api/shifts/open", api.OpenShiftRequest{WorkerID: "emp-1", Day: "2025-03-10"}).Body.Close()
	postJSON(t, srv.URL+"/api/shifts/close", api.CloseShiftRequest{
		WorkerID: "emp-1", Day: "2025-03-10", TotalRevenue: "1000",
	}).Body.Close()

	resp := postJSON(t, srv.URL+"/api/shifts/close", api.CloseShiftRequest{
		WorkerID: "emp-1", Day: "2025-03-10", TotalRevenue: "500",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	var errResp api.ErrorResponse
	decodeBody(t, resp, &errResp)
	if errResp.Code != "already_closed" {
		t.Errorf("code = %q, want already_closed", errResp.Code)
	}
}

func TestClose_UnknownShiftGets404(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/shifts/close", api.CloseShiftRequest{
		WorkerID: "emp-1", Day: "2025-03-10",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestClose_BadAmountGets400(t *testing.T) {
	_, srv := newTestServer(t)

	postJSON(t, srv.URL+"/api/shifts/open", api.OpenShiftRequest{WorkerID: "emp-1", Day: "2025-03-10"}).Body.Close()

	resp := postJSON(t, srv.URL+"/api/shifts/close", api.CloseShiftRequest{
		WorkerID: "emp-1", Day: "2025-03-10",
		Items: []api.LineItemRequest{{ServiceName: "haircut", Revenue: "not-a-number", Consumables: "0"}},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestClose_ReconcilesAppointments(t *testing.T) {
	// GIVEN: two booked appointments, one of which appears in the close
	// WHEN: closing the shift
	// THEN: the linked one is settled and the other marked not attended

	mem, srv := newTestServer(t)
	day := shift.NewDay(2025, time.March, 10)
	mem.SeedAppointment(shift.Appointment{ID: "apt-1", WorkerID: "emp-1", Day: day, Status: shift.AppointmentConfirmed})
	mem.SeedAppointment(shift.Appointment{ID: "apt-2", WorkerID: "emp-1", Day: day, Status: shift.AppointmentScheduled})

	postJSON(t, srv.URL+"/api/shifts/open", api.OpenShiftRequest{WorkerID: "emp-1", Day: "2025-03-10"}).Body.Close()
	resp := postJSON(t, srv.URL+"/api/shifts/close", api.CloseShiftRequest{
		WorkerID: "emp-1", Day: "2025-03-10",
		Items: []api.LineItemRequest{
			{ClientName: "a", ServiceName: "haircut", Revenue: "1500", Consumables: "0", AppointmentID: "apt-1"},
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close status = %d", resp.StatusCode)
	}

	if st, _ := mem.AppointmentStatus("apt-1"); st != shift.AppointmentSettled {
		t.Errorf("apt-1 status = %s, want settled", st)
	}
	if st, _ := mem.AppointmentStatus("apt-2"); st != shift.AppointmentNotAttended {
		t.Errorf("apt-2 status = %s, want not_attended", st)
	}
}

func TestLiveStats(t *testing.T) {
	_, srv := newTestServer(t)

	postJSON(t, srv.URL+"/api/shifts/open", api.OpenShiftRequest{WorkerID: "emp-1", Day: "2025-03-10"}).Body.Close()

	resp, err := http.Get(srv.URL + "/api/shifts/live?worker_id=emp-1&day=2025-03-10")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var live api.LiveStatsDTO
	decodeBody(t, resp, &live)
	if live.Status != "open" {
		t.Errorf("status = %s", live.Status)
	}
	if _, err := time.Parse(time.RFC3339, live.OpenedAt); err != nil {
		t.Errorf("opened_at not RFC3339: %q", live.OpenedAt)
	}
}

func TestRangeStats(t *testing.T) {
	_, srv := newTestServer(t)

	postJSON(t, srv.URL+"/api/shifts/open", api.OpenShiftRequest{WorkerID: "emp-1", Day: "2025-03-10"}).Body.Close()
	postJSON(t, srv.URL+"/api/shifts/close", api.CloseShiftRequest{
		WorkerID: "emp-1", Day: "2025-03-10", TotalRevenue: "1000",
	}).Body.Close()

	resp, err := http.Get(srv.URL + "/api/shifts/stats?worker_id=emp-1&from=2025-03-01&to=2025-03-31")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var agg api.RangeStatsDTO
	decodeBody(t, resp, &agg)
	if agg.ClosedShifts != 1 {
		t.Errorf("closed shifts = %d", agg.ClosedShifts)
	}
	if agg.WorkerShare != "600" {
		t.Errorf("worker share = %s, want 600", agg.WorkerShare)
	}
}
