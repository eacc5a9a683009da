package query

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/lcfs-portal/internal/domain"
	"github.com/bcgov/lcfs-portal/internal/pagination"
)

func TestMutationSettlesOnSuccessAndError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	type settled struct {
		in  domain.NotionalTransfer
		out domain.NotionalTransfer
		err error
	}
	var calls []settled
	fail := errors.New("validation failed")

	m := NewMutation(env.client,
		func(ctx context.Context, in domain.NotionalTransfer) (domain.NotionalTransfer, error) {
			if in.Quantity < 0 {
				return domain.NotionalTransfer{}, fail
			}
			in.NotionalTransferID = 11
			return in, nil
		},
		func(ctx context.Context, in, out domain.NotionalTransfer, err error) {
			calls = append(calls, settled{in: in, out: out, err: err})
		},
	)

	out, err := m.Trigger(ctx, domain.NotionalTransfer{ComplianceReportID: 42, Quantity: 100})
	require.NoError(t, err)
	assert.Equal(t, 11, out.NotionalTransferID)

	_, err = m.Trigger(ctx, domain.NotionalTransfer{ComplianceReportID: 42, Quantity: -1})
	assert.ErrorIs(t, err, fail)

	require.Len(t, calls, 2)
	assert.NoError(t, calls[0].err)
	assert.Equal(t, 11, calls[0].out.NotionalTransferID)
	assert.ErrorIs(t, calls[1].err, fail)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Mutations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Mutations.WithLabelValues("error")))
}

func TestMutationInvalidatesInSettle(t *testing.T) {
	env := newTestEnv(t, WithStaleTime(-1))
	ctx := context.Background()

	res := env.client.Query(ctx, pageKey(t, "notional-transfers", 42, 1), func(ctx context.Context) (any, error) {
		return "before", nil
	}, Options{})
	require.NoError(t, res.Err)

	m := NewMutation(env.client,
		func(ctx context.Context, id int) (int, error) { return id, nil },
		func(ctx context.Context, id, _ int, _ error) {
			env.client.Invalidate(pagination.NewKey("notional-transfers", id))
		},
	)
	_, err := m.Trigger(ctx, 42)
	require.NoError(t, err)

	res = env.client.Query(ctx, pageKey(t, "notional-transfers", 42, 1), func(ctx context.Context) (any, error) {
		return "after", nil
	}, Options{})
	assert.Equal(t, "after", res.Data)
}

func TestMutationWithoutClient(t *testing.T) {
	m := NewMutation[string, string](nil, func(ctx context.Context, in string) (string, error) {
		return in + "!", nil
	}, nil)
	out, err := m.Trigger(context.Background(), "saved")
	require.NoError(t, err)
	assert.Equal(t, "saved!", out)
}
