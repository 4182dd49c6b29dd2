package polish

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStubClientReturnsConfiguredResult(t *testing.T) {
	s := &StubClient{Result: Result{Refined: "r", Translated: "t"}}
	res, err := s.Polish(context.Background(), "x", "", "en", "zh")
	assert.NoError(t, err)
	assert.Equal(t, Result{Refined: "r", Translated: "t"}, res)
}

func TestStubClientReturnsConfiguredError(t *testing.T) {
	wantErr := errors.New("backend down")
	s := &StubClient{Err: wantErr}
	_, err := s.Polish(context.Background(), "x", "", "en", "zh")
	assert.Equal(t, wantErr, err)
}
