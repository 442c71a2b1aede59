package auth

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	platformauth "github.com/zenGate-Global/estatedesk/platform/go/auth"
)

func TestDevTokenCommand(t *testing.T) {
	t.Parallel()

	cmd := Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"devtoken", "--user-id", "agent-7", "--email", "agent7@example.com", "--name", "Ravi"})
	require.NoError(t, cmd.Execute())

	token := strings.TrimSpace(out.String())
	require.Len(t, strings.Split(token, "."), 3)

	claims, err := platformauth.UnsignedTokenVerifier()(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "agent-7", claims["user_id"])
	require.Equal(t, "Ravi", claims["name"])
	require.Equal(t, "estatedesk-local", claims["aud"])
}

func TestDevTokenCommandRequiresIdentity(t *testing.T) {
	t.Parallel()

	cmd := Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"devtoken", "--user-id", "agent-7"})
	require.ErrorContains(t, cmd.Execute(), "email")
}
