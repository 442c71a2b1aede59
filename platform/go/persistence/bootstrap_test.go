package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"

	sqlassets "github.com/zenGate-Global/estatedesk/database"
)

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	script := `
-- header comment only
CREATE TABLE a (id INT);

CREATE INDEX a_idx ON a (id);
-- trailing comment
`
	statements := splitStatements(script)
	require.Equal(t, []string{
		"-- header comment only\nCREATE TABLE a (id INT)",
		"CREATE INDEX a_idx ON a (id)",
	}, statements)
}

func TestEmbeddedSchemaOrdering(t *testing.T) {
	t.Parallel()

	properties := splitStatements(sqlassets.PropertiesSQL)
	leads := splitStatements(sqlassets.LeadsSQL)

	require.NotEmpty(t, properties)
	require.NotEmpty(t, leads)
	require.Contains(t, properties[0], "CREATE TABLE IF NOT EXISTS properties")
	require.Contains(t, leads[0], "REFERENCES properties")
}
