package identifier

import (
	"context"
	"errors"
	"testing"

	"pharmatrace/internal/domain/sscc"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
)

type fakeReader struct {
	ports.ContainerReader
	taken map[string]bool
	calls int
}

func (f *fakeReader) SSCCExists(_ context.Context, code string) (bool, error) {
	f.calls++
	return f.taken[code] || f.calls < 3, nil
}

func TestGenerateRetriesUntilFree(t *testing.T) {
	codec, err := sscc.NewCodec("0614141", 1)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	reader := &fakeReader{taken: map[string]bool{}}
	svc := NewService(codec, reader)

	got, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reader.calls != 3 {
		t.Fatalf("SSCCExists calls = %d, want 3", reader.calls)
	}
	if !sscc.Validate(got.SSCC) || got.SSCC[:8] != "10614141" || !got.Compliant {
		t.Fatalf("Generate() = %+v", got)
	}
	if got.EPC[:len("urn:epc:id:sscc:0614141.")] != "urn:epc:id:sscc:0614141." {
		t.Fatalf("Generate() epc = %q", got.EPC)
	}
}

type alwaysTaken struct{ ports.ContainerReader }

func (alwaysTaken) SSCCExists(context.Context, string) (bool, error) { return true, nil }

func TestGenerateExhausted(t *testing.T) {
	codec, err := sscc.NewCodec("", 0)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	codec.MaxAttempts = 4
	_, err = NewService(codec, alwaysTaken{}).Generate(context.Background())
	if !errors.Is(err, errs.ErrExhaustedRetries) {
		t.Fatalf("Generate() error = %v", err)
	}
}

func TestContainerEPCAndCandidates(t *testing.T) {
	codec, err := sscc.NewCodec("0614141", 1)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	svc := NewService(codec, nil)

	if got := svc.ContainerEPC(ports.ContainerCase, 4, "106141411234567897"); got != "urn:epc:id:sscc:0614141.1234567897" {
		t.Fatalf("ContainerEPC(valid) = %q", got)
	}
	if got := svc.ContainerEPC(ports.ContainerCase, 4, "CASE-X"); got != "urn:epc:id:sscc:CASE-X" {
		t.Fatalf("ContainerEPC(invalid) = %q", got)
	}
	if got := svc.ContainerEPC(ports.ContainerCase, 4, ""); got != "urn:pharmatrace:container:case:4" {
		t.Fatalf("ContainerEPC(empty) = %q", got)
	}

	code, candidates := svc.Candidates("urn:epc:id:sscc:0614141.1234567897")
	if code != "106141411234567897" {
		t.Fatalf("Candidates() code = %q", code)
	}
	want := []string{
		"urn:epc:id:sscc:0614141.1234567897",
		"urn:epc:id:sscc:06141411.234567897",
		"urn:epc:id:sscc:106141411234567897",
		"106141411234567897",
	}
	if len(candidates) != len(want) {
		t.Fatalf("Candidates() = %v", candidates)
	}
	for i := range want {
		if candidates[i] != want[i] {
			t.Fatalf("Candidates()[%d] = %q, want %q", i, candidates[i], want[i])
		}
	}
}
