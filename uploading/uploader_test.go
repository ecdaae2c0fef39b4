package uploading

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jlyon1/party-camera-ios/backend"
	"github.com/jlyon1/party-camera-ios/config"
)

type testRig struct {
	mock     *backend.MockBackend
	uploader Uploader
	outcomes chan Outcome
}

func newTestRig(t *testing.T, policy FailurePolicy, options UploaderOptions) *testRig {
	t.Helper()
	rig := &testRig{
		mock:     backend.NewMockBackend(),
		outcomes: make(chan Outcome, 256),
	}
	options.OnOutcome = func(o Outcome) { rig.outcomes <- o }
	rig.uploader = NewUploader(rig.mock, NewQueue(), policy, options, nil)
	t.Cleanup(rig.uploader.Stop)
	return rig
}

func (r *testRig) waitOutcomes(t *testing.T, n int) []Outcome {
	t.Helper()
	var got []Outcome
	timeout := time.After(3 * time.Second)
	for len(got) < n {
		select {
		case o := <-r.outcomes:
			got = append(got, o)
		case <-timeout:
			t.Fatalf("received %d outcomes, want %d", len(got), n)
		}
	}
	return got
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func presignErr(status int) error {
	return backend.NewStatusError("fetchPresignedUpload", status, "")
}

func callsOfKind(calls []backend.Call, kind backend.CallKind) []backend.Call {
	var out []backend.Call
	for _, c := range calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func TestUploader_AtMostOneInFlight(t *testing.T) {
	rig := newTestRig(t, nil, UploaderOptions{})
	for i := 0; i < 20; i++ {
		rig.mock.PresignSteps = append(rig.mock.PresignSteps, backend.Step{Delay: 2 * time.Millisecond})
		rig.mock.PutSteps = append(rig.mock.PutSteps, backend.Step{Delay: time.Millisecond})
	}
	rig.uploader.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte{byte(i)}})
		}(i)
	}
	wg.Wait()

	rig.waitOutcomes(t, 20)

	if got := rig.mock.MaxConcurrentCalls(); got != 1 {
		t.Errorf("max concurrent backend calls = %d, want 1", got)
	}
	if got := len(rig.mock.SuccessfulPuts()); got != 20 {
		t.Errorf("successful puts = %d, want 20", got)
	}
}

func TestUploader_PresignsInEnqueueOrder(t *testing.T) {
	rig := newTestRig(t, nil, UploaderOptions{})
	gate := make(chan struct{})
	rig.mock.PresignSteps = []backend.Step{{Gate: gate}}
	rig.uploader.Start(context.Background())

	for id := 1; id <= 5; id++ {
		rig.uploader.Enqueue(&Entry{EventID: id, Data: []byte(strconv.Itoa(id))})
	}
	close(gate)
	rig.waitOutcomes(t, 5)

	presigns := callsOfKind(rig.mock.Calls(), backend.CallPresign)
	if len(presigns) != 5 {
		t.Fatalf("presign calls = %d, want 5", len(presigns))
	}
	for i, c := range presigns {
		if c.EventID != i+1 {
			t.Errorf("presign %d was for event %d, want %d", i, c.EventID, i+1)
		}
		if c.ContentType != DefaultContentType {
			t.Errorf("presign %d content type = %q", i, c.ContentType)
		}
	}
}

func TestUploader_CompletionOrderMatchesEnqueueOrder(t *testing.T) {
	rig := newTestRig(t, nil, UploaderOptions{})
	rig.mock.PutSteps = []backend.Step{
		{Delay: 30 * time.Millisecond},
		{Delay: time.Millisecond},
		{Delay: 15 * time.Millisecond},
		{},
	}
	rig.uploader.Start(context.Background())

	for _, data := range []string{"a", "b", "c", "d"} {
		rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte(data)})
	}

	outcomes := rig.waitOutcomes(t, 4)
	for i, o := range outcomes {
		if o.Entry.Seq != uint64(i+1) {
			t.Errorf("outcome %d is for seq %d", i, o.Entry.Seq)
		}
		if o.Status != StatusUploaded {
			t.Errorf("outcome %d status = %s, want uploaded", i, o.Status)
		}
		if o.FileName == "" {
			t.Errorf("outcome %d has no file name", i)
		}
	}

	puts := rig.mock.SuccessfulPuts()
	want := []string{"a", "b", "c", "d"}
	for i := range want {
		if string(puts[i]) != want[i] {
			t.Errorf("put %d = %q, want %q", i, puts[i], want[i])
		}
	}
}

func TestUploader_EnqueueNeverBlocks(t *testing.T) {
	rig := newTestRig(t, nil, UploaderOptions{})
	gate := make(chan struct{})
	defer close(gate)
	rig.mock.PresignSteps = []backend.Step{{Gate: gate}}
	rig.uploader.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte("x")})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked while an upload was stalled")
	}

	waitFor(t, "first entry in flight", rig.uploader.InFlight)
	if got := rig.uploader.Pending(); got != 999 {
		t.Errorf("Pending = %d, want 999", got)
	}
	for _, c := range rig.mock.Calls() {
		if !c.Finished.IsZero() {
			t.Error("a network call completed before the gate opened")
		}
	}
}

func TestUploader_EnqueueBeforeStart(t *testing.T) {
	rig := newTestRig(t, nil, UploaderOptions{})
	rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte("early")})
	if got := len(rig.mock.Calls()); got != 0 {
		t.Fatalf("calls before Start = %d, want 0", got)
	}

	rig.uploader.Start(context.Background())
	rig.uploader.Start(context.Background())

	o := rig.waitOutcomes(t, 1)[0]
	if o.Status != StatusUploaded {
		t.Errorf("status = %s, want uploaded", o.Status)
	}
}

func TestUploader_AbandonsFailedEntryAndMovesOn(t *testing.T) {
	rig := newTestRig(t, AbandonPolicy{}, UploaderOptions{})
	failGate := make(chan struct{})
	holdGate := make(chan struct{})
	rig.mock.PresignSteps = []backend.Step{
		{Gate: failGate, Err: presignErr(http.StatusServiceUnavailable)},
		{Gate: holdGate},
	}
	rig.uploader.Start(context.Background())

	for _, data := range []string{"x", "y", "z"} {
		rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte(data)})
	}
	waitFor(t, "x in flight", func() bool { return rig.uploader.InFlight() && rig.uploader.Pending() == 2 })

	close(failGate)
	first := rig.waitOutcomes(t, 1)[0]
	if first.Status != StatusAbandoned || first.Attempts != 1 {
		t.Errorf("x outcome = %s after %d attempts, want abandoned after 1", first.Status, first.Attempts)
	}
	if !backend.IsStatusError(first.Err) {
		t.Errorf("x error = %v, want status error", first.Err)
	}

	// y is now in flight, only z waits
	waitFor(t, "y in flight", func() bool { return rig.uploader.Pending() == 1 })

	close(holdGate)
	rest := rig.waitOutcomes(t, 2)
	for _, o := range rest {
		if o.Status != StatusUploaded {
			t.Errorf("seq %d status = %s, want uploaded", o.Entry.Seq, o.Status)
		}
	}

	presigns := callsOfKind(rig.mock.Calls(), backend.CallPresign)
	if len(presigns) != 3 {
		t.Errorf("presign calls = %d, want 3 (no retry)", len(presigns))
	}
	puts := rig.mock.SuccessfulPuts()
	if len(puts) != 2 || string(puts[0]) != "y" || string(puts[1]) != "z" {
		t.Errorf("puts = %q, want [y z]", puts)
	}
}

func TestUploader_PersistentFailureDrainsToEmpty(t *testing.T) {
	rig := newTestRig(t, nil, UploaderOptions{})
	const n = 25
	for i := 0; i < n; i++ {
		rig.mock.PresignSteps = append(rig.mock.PresignSteps, backend.Step{Err: errors.New("connection refused")})
	}
	rig.uploader.Start(context.Background())

	for i := 0; i < n; i++ {
		rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte("p")})
	}

	if !rig.uploader.Drain(2 * time.Second) {
		t.Fatal("queue did not drain")
	}
	outcomes := rig.waitOutcomes(t, n)
	for _, o := range outcomes {
		if o.Status != StatusAbandoned {
			t.Errorf("seq %d status = %s, want abandoned", o.Entry.Seq, o.Status)
		}
	}
	if rig.uploader.Pending() != 0 || rig.uploader.InFlight() {
		t.Error("uploader not idle after drain")
	}
	if len(rig.mock.SuccessfulPuts()) != 0 {
		t.Error("no put should have been issued")
	}
}

func TestUploader_SlowSuccessThenPresignFailure(t *testing.T) {
	rig := newTestRig(t, nil, UploaderOptions{})
	rig.mock.PresignSteps = []backend.Step{
		{Delay: 50 * time.Millisecond},
		{Err: presignErr(http.StatusInternalServerError)},
	}
	rig.uploader.Start(context.Background())

	start := time.Now()
	rig.uploader.Enqueue(&Entry{EventID: 3, Data: []byte("a")})
	rig.uploader.Enqueue(&Entry{EventID: 3, Data: []byte("b")})

	outcomes := rig.waitOutcomes(t, 2)
	if outcomes[0].Status != StatusUploaded || outcomes[1].Status != StatusAbandoned {
		t.Errorf("statuses = %s, %s; want uploaded, abandoned", outcomes[0].Status, outcomes[1].Status)
	}

	calls := rig.mock.Calls()
	if len(calls) != 3 {
		t.Fatalf("calls = %d, want presign, put, presign", len(calls))
	}
	wantKinds := []backend.CallKind{backend.CallPresign, backend.CallPut, backend.CallPresign}
	for i, k := range wantKinds {
		if calls[i].Kind != k {
			t.Errorf("call %d = %s, want %s", i, calls[i].Kind, k)
		}
	}
	if calls[1].Started.Sub(start) < 50*time.Millisecond {
		t.Error("P1's put began before its presign completed")
	}
	if calls[2].Started.Before(calls[1].Finished) {
		t.Error("P2's presign began before P1's put completed")
	}

	puts := rig.mock.SuccessfulPuts()
	if len(puts) != 1 || string(puts[0]) != "a" {
		t.Errorf("successful puts = %q, want exactly [a]", puts)
	}
	if rig.uploader.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", rig.uploader.Pending())
	}
}

func TestUploader_AttemptTimeoutUnblocksQueue(t *testing.T) {
	rig := newTestRig(t, nil, UploaderOptions{AttemptTimeout: 20 * time.Millisecond})
	never := make(chan struct{})
	defer close(never)
	rig.mock.PutSteps = []backend.Step{{Gate: never}}
	rig.uploader.Start(context.Background())

	rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte("stuck")})
	rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte("next")})

	outcomes := rig.waitOutcomes(t, 2)
	if outcomes[0].Status != StatusAbandoned || !errors.Is(outcomes[0].Err, context.DeadlineExceeded) {
		t.Errorf("stalled entry = %s (%v), want abandoned on deadline", outcomes[0].Status, outcomes[0].Err)
	}
	if outcomes[0].FileName == "" {
		t.Error("file name from the issued presign should be reported")
	}
	if outcomes[1].Status != StatusUploaded {
		t.Errorf("next entry = %s, want uploaded", outcomes[1].Status)
	}
}

func TestUploader_RetryPolicyRetriesHeadEntry(t *testing.T) {
	settings := config.NewStaticSettingsProvider(RetrySettings{MaxAttempts: 3, Backoff: time.Millisecond})
	rig := newTestRig(t, NewRetryPolicy(settings), UploaderOptions{})
	rig.mock.PresignSteps = []backend.Step{
		{Err: presignErr(http.StatusBadGateway)},
		{Err: errors.New("connection reset")},
	}
	rig.mock.PutSteps = []backend.Step{{}, {StatusCode: http.StatusForbidden}}
	rig.uploader.Start(context.Background())

	rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte("first")})
	rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte("second")})

	outcomes := rig.waitOutcomes(t, 2)
	if outcomes[0].Status != StatusUploaded || outcomes[0].Attempts != 3 {
		t.Errorf("first = %s after %d attempts, want uploaded after 3", outcomes[0].Status, outcomes[0].Attempts)
	}
	// 403 is not recoverable
	if outcomes[1].Status != StatusAbandoned || outcomes[1].Attempts != 1 {
		t.Errorf("second = %s after %d attempts, want abandoned after 1", outcomes[1].Status, outcomes[1].Attempts)
	}

	calls := rig.mock.Calls()
	last := calls[len(calls)-1]
	if last.Kind != backend.CallPut || string(last.Data) != "second" {
		t.Error("second entry must only start after the first one finished retrying")
	}
}

func TestUploader_StopLetsCurrentAttemptFinish(t *testing.T) {
	rig := newTestRig(t, nil, UploaderOptions{})
	rig.mock.PresignSteps = []backend.Step{{Delay: 30 * time.Millisecond}}
	rig.uploader.Start(context.Background())

	rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte("a")})
	rig.uploader.Enqueue(&Entry{EventID: 1, Data: []byte("b")})
	waitFor(t, "upload in flight", rig.uploader.InFlight)

	rig.uploader.Stop()

	if got := len(rig.mock.SuccessfulPuts()); got != 1 {
		t.Errorf("successful puts = %d, want 1", got)
	}
	if got := rig.uploader.Pending(); got != 1 {
		t.Errorf("Pending after Stop = %d, want 1", got)
	}
}
