package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	body := []byte(`{"enrollment_id":"e1","status":"completed"}`)
	sig := Sign("s3cret", body)

	require.NoError(t, Verify("s3cret", body, sig))
	require.NoError(t, Verify("s3cret", body, "sha256="+sig))
	require.ErrorIs(t, Verify("s3cret", body, ""), ErrMissingSignature)
	require.ErrorIs(t, Verify("other", body, sig), ErrBadSignature)
	require.ErrorIs(t, Verify("s3cret", []byte(`{}`), sig), ErrBadSignature)
	require.ErrorIs(t, Verify("s3cret", body, "zz"), ErrBadSignature)
}
