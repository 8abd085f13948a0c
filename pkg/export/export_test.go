package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	return Dataset{
		Headers: []string{"Student", "Status"},
		Rows: []map[string]string{
			{"Student": "Ada Lovelace", "Status": "Enrolled"},
		},
	}
}

func TestCSVRenderStartsWithByteOrderMark(t *testing.T) {
	content, err := NewCSVExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "\xef\xbb\xbf"))
	assert.Contains(t, string(content), "Student,Status")
	assert.Contains(t, string(content), "Ada Lovelace")
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFRenderProducesDocumentWithLetterhead(t *testing.T) {
	content, err := NewPDFExporter().Render(rosterDataset(), "Roster - CS101", "State University")
	require.NoError(t, err)
	require.NotEmpty(t, content)
	assert.True(t, strings.HasPrefix(string(content), "%PDF"))
}
