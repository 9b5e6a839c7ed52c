// Package identifier issues SSCCs that are unique across every container
// kind and renders the EPC forms used as trace event subjects.
package identifier

import (
	"context"
	"errors"
	"strings"

	"pharmatrace/internal/domain/sscc"
	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
)

type Service struct {
	codec      *sscc.Codec
	containers ports.ContainerReader
}

// NewService wires the codec with the store used for the uniqueness check.
func NewService(codec *sscc.Codec, containers ports.ContainerReader) *Service {
	return &Service{codec: codec, containers: containers}
}

type Generated struct {
	SSCC      string `json:"sscc"`
	EPC       string `json:"epc"`
	Compliant bool   `json:"compliant"`
}

// Generate returns a code that no shipment, package or case holds at the time
// of the check. Callers still rely on the unique index at insert time.
func (s *Service) Generate(ctx context.Context) (Generated, error) {
	if ctx == nil {
		return Generated{}, errors.New("context is required")
	}
	if s.codec == nil {
		return Generated{}, errors.New("sscc codec is required")
	}

	var exists sscc.ExistsFunc
	if s.containers != nil {
		exists = s.containers.SSCCExists
	}
	code, err := s.codec.Generate(ctx, exists)
	if err != nil {
		return Generated{}, errs.Wrap(err, "generate sscc")
	}
	epc, err := s.codec.EPCURI(code)
	if err != nil {
		return Generated{}, errs.Wrap(err, "render sscc epc")
	}
	return Generated{SSCC: code, EPC: epc, Compliant: s.codec.Compliant()}, nil
}

func (s *Service) Validate(code string) bool {
	return sscc.Validate(strings.TrimSpace(code))
}

func (s *Service) EPCURI(code string) (string, error) {
	return s.codec.EPCURI(strings.TrimSpace(code))
}

// ContainerEPC is the subject identifier of a container in trace events.
// Containers without an SSCC get a local URN; codes that fail validation keep
// the unsplit legacy form.
func (s *Service) ContainerEPC(kind ports.ContainerKind, id uint64, code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return trace.ContainerURN(string(kind), id)
	}
	if uri, err := s.codec.EPCURI(code); err == nil {
		return uri
	}
	return sscc.LegacyURI(code)
}

// Candidates lists every subject form an SSCC may have been recorded under:
// the configured split form, the fallback split form, the legacy unsplit URI
// and the bare code. input may be a bare code or any SSCC URI.
func (s *Service) Candidates(input string) (code string, candidates []string) {
	input = strings.TrimSpace(input)
	code = input
	if parsed, ok := sscc.FromURI(input); ok {
		code = parsed
	}

	add := func(v string) {
		if v == "" {
			return
		}
		for _, existing := range candidates {
			if existing == v {
				return
			}
		}
		candidates = append(candidates, v)
	}

	if uri, err := s.codec.EPCURI(code); err == nil {
		add(uri)
	}
	fallback := s.codec.FallbackPrefixLength
	if fallback == 0 {
		fallback = sscc.DefaultFallbackPrefixLength
	}
	if uri, err := sscc.EPCURI(code, fallback); err == nil {
		add(uri)
	}
	add(sscc.LegacyURI(code))
	add(code)
	if input != code {
		add(input)
	}
	return code, candidates
}
