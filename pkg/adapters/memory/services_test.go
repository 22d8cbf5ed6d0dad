package memory_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

func drain(t *testing.T, s ports.ModelStream) (string, error) {
	t.Helper()
	var b strings.Builder
	for {
		tok, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return b.String(), nil
			}
			return b.String(), err
		}
		b.WriteString(tok)
	}
}

func TestModel_Stream(t *testing.T) {
	ctx := context.Background()
	m := memory.NewModel(memory.Reply("hi there"))
	s, err := m.Stream(ctx, ports.ModelRequest{Prompt: "p", Model: "m"})
	require.NoError(t, err)
	text, err := drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
	require.Len(t, m.Calls(), 1)
	assert.Equal(t, "m", m.Calls()[0].Model)

	broken := memory.NewModel(func(ports.ModelRequest) ([]string, error) {
		return []string{"par", "tial"}, errors.New("upstream reset")
	})
	s, err = broken.Stream(ctx, ports.ModelRequest{})
	require.NoError(t, err)
	text, err = drain(t, s)
	assert.EqualError(t, err, "upstream reset")
	assert.Equal(t, "partial", text)
}

func TestKeywordRiskChecker(t *testing.T) {
	rc := memory.KeywordRiskChecker{Label: "abuse", Keywords: []string{"forbidden"}}
	v, err := rc.Check(context.Background(), "this is FORBIDDEN")
	require.NoError(t, err)
	assert.False(t, v.Pass)
	assert.Equal(t, "abuse", v.Label)

	v, err = rc.Check(context.Background(), "fine")
	require.NoError(t, err)
	assert.True(t, v.Pass)
}

func TestCodes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	codes := memory.NewCodes(
		memory.WithClock(func() time.Time { return now }),
		memory.WithGenerator(func() string { return "4242" }),
		memory.WithCodeTTL(time.Minute),
	)

	_, err := codes.Verify(ctx, "u", "4242")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch, "nothing sent yet")

	require.NoError(t, codes.Send(ctx, "u", "13800000000"))
	_, err = codes.Verify(ctx, "u", "0000")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)

	phone, err := codes.Verify(ctx, "u", "4242")
	require.NoError(t, err)
	assert.Equal(t, "13800000000", phone)

	require.NoError(t, codes.Send(ctx, "u", "13800000000"))
	now = now.Add(2 * time.Minute)
	_, err = codes.Verify(ctx, "u", "4242")
	assert.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestPaymentsAndProfiles(t *testing.T) {
	ctx := context.Background()
	pay := memory.NewPayments()
	_, err := pay.FindOrder(ctx, "u", "course")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	o, err := pay.CreateOrder(ctx, "u", "course", 990)
	require.NoError(t, err)
	assert.False(t, o.Paid())
	require.NoError(t, pay.MarkPaid(ctx, o.ID))
	found, err := pay.FindOrder(ctx, "u", "course")
	require.NoError(t, err)
	assert.True(t, found.Paid())

	profiles := memory.NewProfiles()
	_, err = profiles.GetProfile(ctx, "u")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, profiles.SaveProfile(ctx, &domain.Profile{UserID: "u", Verified: true}))
	p, err := profiles.GetProfile(ctx, "u")
	require.NoError(t, err)
	assert.True(t, p.Verified)
}
