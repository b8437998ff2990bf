package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-report-api/internal/models"
)

func TestRoundTrip(t *testing.T) {
	tree := models.ComponentTree{
		models.KindColumns: {
			{ID: "c1", Plugin: "field", FormData: models.FormData{"column": "name", "label": "Full name"}},
			{ID: "c2", Plugin: "timespent", FormData: models.FormData{"label": "Time spent"}},
		},
		models.KindFilters: {
			{ID: "f1", Plugin: "status", FormData: models.FormData{"key": "status"}},
		},
		models.KindPermissions: {
			{ID: "p1", Plugin: "roleincourse", FormData: models.FormData{"role": "manager", "context_level": "course"}},
		},
	}

	encoded, err := Encode(tree)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, tree, decoded)
}

func TestRoundTripMetacharacters(t *testing.T) {
	tree := models.ComponentTree{
		models.KindCustomSQL: {
			{
				ID:     "q1",
				Plugin: "querysql",
				FormData: models.FormData{
					"querysql": `SELECT name, email FROM users WHERE note = 'a;b:c' AND title = "x{y}"`,
					"label":    `quoted: "values"; colons: a:b; semis; 100%`,
				},
			},
		},
	}

	encoded, err := Encode(tree)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, tree, decoded)
}

func TestDecodeEmpty(t *testing.T) {
	tree, err := Decode("")
	require.NoError(t, err)
	require.Empty(t, tree)
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{"{not json", `{"columns": 12}`, `{"columns":[{"plugin":"%zz"}]}`} {
		_, err := Decode(raw)
		require.Error(t, err, "input %q", raw)
		require.Contains(t, err.Error(), "configuration")
	}
}

func TestEncodeNilTree(t *testing.T) {
	encoded, err := Encode(nil)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Empty(t, decoded)
}
