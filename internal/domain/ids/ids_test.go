package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewULID(t *testing.T) {
	id := NewULID()
	require.Len(t, id, 26)
	require.NoError(t, ValidateULID(id))
	require.NotEqual(t, id, NewULID())
}

func TestValidateULIDRejectsGarbage(t *testing.T) {
	require.Error(t, ValidateULID(""))
	require.Error(t, ValidateULID("not-a-ulid"))
	require.Error(t, ValidateULID("01HQZX3Y4K6F7G8H9J0K1M2N3"))
}

func TestValidateUUID(t *testing.T) {
	require.NoError(t, ValidateUUID(NewUUID()))
	require.Error(t, ValidateUUID("abc"))
}
