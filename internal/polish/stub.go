package polish

import "context"

// StubClient is the in-process polish capability used by tests and
// deployments without a live LLM backend.
type StubClient struct {
	Result Result
	Err    error
}

func (s *StubClient) Polish(ctx context.Context, text, previousContext, sourceLang, targetLang string) (Result, error) {
	if s.Err != nil {
		return Result{}, s.Err
	}
	return s.Result, nil
}
