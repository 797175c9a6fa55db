package inference

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/maiiam/maiiam/internal/remote"
)

// fakeService records the protocol calls and serves a canned result.
type fakeService struct {
	calls []string

	inputErr  error
	promptErr error
	returnErr error

	result       string
	gotInput     []string
	gotPrompt    string
	gotInputs    []remote.PromptInput
	resultObject string
}

func (f *fakeService) InputData(_ context.Context, objectName string, rows []string) error {
	f.calls = append(f.calls, "input_data:"+objectName)
	f.gotInput = rows
	return f.inputErr
}

func (f *fakeService) ApplyPrompt(_ context.Context, objectNames []string, prompt string, inputs []remote.PromptInput) error {
	f.calls = append(f.calls, "apply_prompt:"+strings.Join(objectNames, ","))
	f.gotPrompt = prompt
	f.gotInputs = inputs
	if len(objectNames) > 0 {
		f.resultObject = objectNames[0]
	}
	return f.promptErr
}

func (f *fakeService) ReturnData(_ context.Context, objectName, returnType string) (string, error) {
	f.calls = append(f.calls, "return_data:"+objectName+":"+returnType)
	return f.result, f.returnErr
}

type fakeTracker struct {
	tracked []string
}

func (f *fakeTracker) Track(name string) { f.tracked = append(f.tracked, name) }

func newTestEngine(svc *fakeService, tr *fakeTracker) *Engine {
	e := New(svc, tr)
	e.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return e
}

func TestInfer_ProtocolSequenceAndTracking(t *testing.T) {
	svc := &fakeService{result: `{"Physical":10,"Etheric":20,"Astral":70,"Mental":40,"Causal":5,"Buddhic":0,"Atmic":0,"suggestion":"Try a 5-minute breathing exercise"}`}
	tr := &fakeTracker{}
	e := newTestEngine(svc, tr)

	a, err := e.Infer(context.Background(), "I feel anxious about work")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if a == nil {
		t.Fatal("Infer returned nil analysis")
	}

	want := []string{
		"input_data:user_input",
		"apply_prompt:state_analysis_1700000000000",
		"return_data:state_analysis_1700000000000:raw_text",
	}
	if len(svc.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", svc.calls, want)
	}
	for i := range want {
		if svc.calls[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, svc.calls[i], want[i])
		}
	}

	if len(tr.tracked) != 2 || tr.tracked[0] != "user_input" || tr.tracked[1] != "state_analysis_1700000000000" {
		t.Errorf("tracked = %v, want both object names", tr.tracked)
	}

	if len(svc.gotInput) != 1 || svc.gotInput[0] != "I feel anxious about work" {
		t.Errorf("stored input = %v", svc.gotInput)
	}
	if len(svc.gotInputs) != 1 || svc.gotInputs[0].ObjectName != "user_input" || svc.gotInputs[0].Mode != "use_individually" {
		t.Errorf("prompt inputs = %+v", svc.gotInputs)
	}
	if !strings.Contains(svc.gotPrompt, "7-State Framework") {
		t.Error("classification prompt missing rubric")
	}

	if d, _ := a.Vector.Dominant(); string(d) != "Astral" {
		t.Errorf("dominant = %s, want Astral", d)
	}
	if a.Suggestion != "Try a 5-minute breathing exercise" {
		t.Errorf("suggestion = %q", a.Suggestion)
	}
}

func TestInfer_MissingKeysDefaultToZero(t *testing.T) {
	svc := &fakeService{result: `{"Astral":70,"Mental":40,"suggestion":"rest"}`}
	e := newTestEngine(svc, &fakeTracker{})

	a, err := e.Infer(context.Background(), "text")
	if err != nil || a == nil {
		t.Fatalf("Infer = (%v, %v), want analysis", a, err)
	}
	if a.Vector.Physical != 0 || a.Vector.Etheric != 0 || a.Vector.Causal != 0 || a.Vector.Buddhic != 0 || a.Vector.Atmic != 0 {
		t.Errorf("missing keys did not default to 0: %+v", a.Vector)
	}
	if a.Vector.Astral != 70 || a.Vector.Mental != 40 {
		t.Errorf("present keys wrong: %+v", a.Vector)
	}
}

func TestInfer_OutOfRangeScoresClamped(t *testing.T) {
	svc := &fakeService{result: `{"Physical":-10,"Etheric":250,"suggestion":"x"}`}
	e := newTestEngine(svc, &fakeTracker{})

	a, err := e.Infer(context.Background(), "text")
	if err != nil || a == nil {
		t.Fatalf("Infer = (%v, %v)", a, err)
	}
	if a.Vector.Physical != 0 {
		t.Errorf("Physical = %v, want 0", a.Vector.Physical)
	}
	if a.Vector.Etheric != 100 {
		t.Errorf("Etheric = %v, want 100", a.Vector.Etheric)
	}
}

func TestInfer_UnparseableResultIsNoUpdate(t *testing.T) {
	svc := &fakeService{result: "I am sorry, I cannot produce JSON."}
	e := newTestEngine(svc, &fakeTracker{})

	a, err := e.Infer(context.Background(), "text")
	if err != nil {
		t.Fatalf("unparseable result must not be an error, got %v", err)
	}
	if a != nil {
		t.Errorf("analysis = %+v, want nil", a)
	}
}

func TestInfer_NonObjectResultIsNoUpdate(t *testing.T) {
	tests := []struct {
		name   string
		result string
	}{
		{"null", "null"},
		{"array", "[]"},
		{"number", "42"},
		{"string", `"fine"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{result: tt.result}
			e := newTestEngine(svc, &fakeTracker{})

			a, err := e.Infer(context.Background(), "text")
			if err != nil {
				t.Fatalf("non-object result must not be an error, got %v", err)
			}
			if a != nil {
				t.Errorf("analysis = %+v, want nil", a)
			}
		})
	}
}

func TestInfer_StopsAtFirstFailedStep(t *testing.T) {
	tests := []struct {
		name      string
		svc       *fakeService
		wantCalls int
	}{
		{"input_data fails", &fakeService{inputErr: errors.New("boom")}, 1},
		{"apply_prompt fails", &fakeService{promptErr: errors.New("boom")}, 2},
		{"return_data fails", &fakeService{returnErr: errors.New("boom")}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(tt.svc, &fakeTracker{})
			a, err := e.Infer(context.Background(), "text")
			if err == nil {
				t.Fatal("want error")
			}
			if a != nil {
				t.Errorf("analysis = %+v, want nil", a)
			}
			if len(tt.svc.calls) != tt.wantCalls {
				t.Errorf("calls = %v, want %d calls", tt.svc.calls, tt.wantCalls)
			}
		})
	}
}
